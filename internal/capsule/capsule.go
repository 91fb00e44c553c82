// Package capsule defines the unit of reviewable change: a unified diff
// plus its classification metadata and approval state, persisted per
// (session, capsule) under a store root.
package capsule

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/sprite-ai/capgate/internal/model"
)

// Meta is the durable record for one capsule. Optional annotation fields
// are pointers so "not yet provided" stays distinguishable from an empty
// string.
type Meta struct {
	CapsuleID            string                `json:"capsule_id"`
	Timestamp            time.Time             `json:"timestamp"`
	Risk                 model.RiskLevel       `json:"risk"`
	Reasons              []string              `json:"reasons"`
	Why                  *string               `json:"why,omitempty"`
	Impact               *string               `json:"impact,omitempty"`
	ValidationPlan       *string               `json:"validation_plan,omitempty"`
	Alternatives         []string              `json:"alternatives,omitempty"`
	TouchedFiles         []string              `json:"touched_files"`
	PublicSurfaceChanges bool                  `json:"public_surface_changes"`
	Provider             *string               `json:"provider,omitempty"`
	RelatedContractIDs   []string              `json:"related_contract_ids,omitempty"`
	ApprovalStatus       model.ApprovalStatus  `json:"approval_status"`
	ApprovedBy           string                `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time            `json:"approved_at,omitempty"`
	ApprovalMethod       model.ApprovalMethod  `json:"approval_method,omitempty"`
}

// Capsule is a diff under review, owned by exactly one session.
type Capsule struct {
	Meta      Meta
	Diff      string
	SessionID string
}

// New builds an in-memory capsule with Pending status from a diff and its
// classification.
func New(sessionID, capsuleID, diffText string, cls model.Classification) *Capsule {
	return &Capsule{
		Meta: Meta{
			CapsuleID:            capsuleID,
			Timestamp:            time.Now().UTC(),
			Risk:                 cls.Risk,
			Reasons:              cls.Reasons,
			TouchedFiles:         cls.TouchedFiles,
			PublicSurfaceChanges: cls.PublicSurfaceChanges,
			ApprovalStatus:       model.StatusPending,
		},
		Diff:      diffText,
		SessionID: sessionID,
	}
}

// NewID returns a fresh opaque capsule identifier.
func NewID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "cap_" + hex.EncodeToString(buf)
}

// WithWhy attaches a free-text rationale.
func (c *Capsule) WithWhy(why string) *Capsule {
	c.Meta.Why = &why
	return c
}

// WithImpact attaches a free-text impact analysis.
func (c *Capsule) WithImpact(impact string) *Capsule {
	c.Meta.Impact = &impact
	return c
}

// WithValidationPlan attaches a free-text validation plan.
func (c *Capsule) WithValidationPlan(plan string) *Capsule {
	c.Meta.ValidationPlan = &plan
	return c
}

// WithProvider attaches an attribution string for the agent or tool that
// produced the diff.
func (c *Capsule) WithProvider(provider string) *Capsule {
	c.Meta.Provider = &provider
	return c
}

// Approve marks the capsule approved. Callers must not approve a capsule
// that already carries a terminal status.
func (c *Capsule) Approve(by string, method model.ApprovalMethod) {
	now := time.Now().UTC()
	c.Meta.ApprovalStatus = model.StatusApproved
	c.Meta.ApprovedBy = by
	c.Meta.ApprovedAt = &now
	c.Meta.ApprovalMethod = method
}

// Deny marks the capsule denied. Other approval fields are left untouched.
func (c *Capsule) Deny() {
	c.Meta.ApprovalStatus = model.StatusDenied
}

// DiffStats counts added and removed lines, excluding the +++/--- file
// header lines.
func (c *Capsule) DiffStats() (added, removed int) {
	for _, line := range strings.Split(c.Diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
