// Package audit provides the append-only event log that records every
// classification and approval decision.
package audit

import (
	"context"
	"time"
)

// Event names emitted by the approval gate.
const (
	EventRiskClassified  = "RISK_CLASSIFIED"
	EventDiffPresented   = "DIFF_PRESENTED"
	EventApprovalGranted = "APPROVAL_GRANTED"
	EventApprovalDenied  = "APPROVAL_DENIED"
	EventCapsuleApplied  = "CAPSULE_APPLIED"
)

// Event is one named audit entry with ordered string fields.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Name      string    `json:"event"`
	Fields    []string  `json:"fields,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(name string, fields ...string) Event {
	return Event{Timestamp: time.Now().UTC(), Name: name, Fields: fields}
}

// Logger is an append-only audit sink. Writes are mandatory: a failed
// append propagates to the caller and is never retried here.
type Logger interface {
	Append(ctx context.Context, e Event) error
	Close() error
}
