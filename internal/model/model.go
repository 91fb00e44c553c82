// Package model defines the core data types shared across capgate.
package model

import (
	"encoding/json"
	"fmt"
)

// RiskLevel categorizes the risk of a change. Levels are totally ordered
// (RiskLow < RiskMedium < RiskHigh) and only ever compared or
// max-aggregated, never averaged.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseRiskLevel converts a stored string back into a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch s {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	}
	return RiskLow, fmt.Errorf("unknown risk level %q", s)
}

// MaxRisk returns the higher of two risk levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b > a {
		return b
	}
	return a
}

// MarshalJSON stores risk levels as readable strings in meta.json.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	level, err := ParseRiskLevel(s)
	if err != nil {
		return err
	}
	*r = level
	return nil
}

// ApprovalStatus tracks the lifecycle of a capsule's review. A capsule
// starts Pending and moves exactly once to Approved or Denied.
type ApprovalStatus int

const (
	StatusPending ApprovalStatus = iota
	StatusApproved
	StatusDenied
)

func (s ApprovalStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status can no longer change.
func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusDenied
}

func (s ApprovalStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ApprovalStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "pending":
		*s = StatusPending
	case "approved":
		*s = StatusApproved
	case "denied":
		*s = StatusDenied
	default:
		return fmt.Errorf("unknown approval status %q", str)
	}
	return nil
}

// ApprovalMethod records how an approval decision was reached.
type ApprovalMethod int

const (
	MethodNone ApprovalMethod = iota
	MethodInteractive
	MethodToken
	MethodAuto
)

func (m ApprovalMethod) String() string {
	switch m {
	case MethodInteractive:
		return "interactive"
	case MethodToken:
		return "token"
	case MethodAuto:
		return "auto"
	default:
		return ""
	}
}

func (m ApprovalMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *ApprovalMethod) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "interactive":
		*m = MethodInteractive
	case "token":
		*m = MethodToken
	case "auto":
		*m = MethodAuto
	case "":
		*m = MethodNone
	default:
		return fmt.Errorf("unknown approval method %q", s)
	}
	return nil
}

// Classification is the result of running the risk classifier over a
// unified diff. Reasons are sorted and deduplicated; TouchedFiles keep
// first-appearance order.
type Classification struct {
	Risk                 RiskLevel `json:"risk"`
	Reasons              []string  `json:"reasons"`
	TouchedFiles         []string  `json:"touched_files"`
	PublicSurfaceChanges bool      `json:"public_surface_changes"`
}
