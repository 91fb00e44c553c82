// Package gate implements the approval workflow for change capsules:
// classification logging, guardrails policy, and auto / file-token /
// interactive resolution.
package gate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sprite-ai/capgate/internal/audit"
	"github.com/sprite-ai/capgate/internal/capsule"
	"github.com/sprite-ai/capgate/internal/model"
)

// ErrTokenMismatch reports an approval token whose capsule_id does not
// match the capsule being processed. This is caller misuse, not a denial.
var ErrTokenMismatch = errors.New("approval token capsule mismatch")

// Mode controls which risk levels require explicit approval.
type Mode int

const (
	ModeOff Mode = iota
	ModeNormal
	ModeStrict
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeNormal:
		return "normal"
	case ModeStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParseMode converts a config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return ModeOff, nil
	case "normal", "":
		return ModeNormal, nil
	case "strict":
		return ModeStrict, nil
	}
	return ModeNormal, fmt.Errorf("unknown guardrails mode %q", s)
}

// Guardrails is the policy configuration the gate consumes.
type Guardrails struct {
	Mode                 Mode
	AutoApproveLow       bool
	RequireImpactForHigh bool
}

// Gate resolves approval for capsules. The store, audit logger, and IO
// streams are injected so tests can substitute all of them.
type Gate struct {
	cfg    Guardrails
	store  *capsule.Store
	logger audit.Logger
	in     *bufio.Reader
	out    io.Writer
}

// New creates a gate. in and out are only touched on the interactive path.
func New(cfg Guardrails, store *capsule.Store, logger audit.Logger, in io.Reader, out io.Writer) *Gate {
	return &Gate{
		cfg:    cfg,
		store:  store,
		logger: logger,
		in:     bufio.NewReader(in),
		out:    out,
	}
}

// Process runs the approval state machine for one capsule and returns
// whether it was approved. The capsule is mutated in place; the caller is
// responsible for persisting it afterwards and for applying the diff.
//
// Calling Process on a capsule that already carries a terminal status
// returns the prior outcome without re-logging any approval event.
func (g *Gate) Process(ctx context.Context, c *capsule.Capsule) (bool, error) {
	if c.Meta.ApprovalStatus.Terminal() {
		return c.Meta.ApprovalStatus == model.StatusApproved, nil
	}

	if err := g.logger.Append(ctx, audit.NewEvent(audit.EventRiskClassified,
		c.Meta.CapsuleID,
		c.Meta.Risk.String(),
		strings.Join(c.Meta.Reasons, "; "),
		strings.Join(c.Meta.TouchedFiles, ", "),
	)); err != nil {
		return false, err
	}

	if !g.requiresApproval(c.Meta.Risk) {
		c.Approve("system", model.MethodAuto)
		if err := g.logger.Append(ctx, audit.NewEvent(audit.EventApprovalGranted,
			c.Meta.CapsuleID, "auto", "system")); err != nil {
			return false, err
		}
		return true, nil
	}

	g.present(c)

	added, removed := c.DiffStats()
	if err := g.logger.Append(ctx, audit.NewEvent(audit.EventDiffPresented,
		c.Meta.CapsuleID, strconv.Itoa(added), strconv.Itoa(removed))); err != nil {
		return false, err
	}

	tok, ok, err := g.store.LoadToken(c.SessionID, c.Meta.CapsuleID)
	if err != nil {
		return false, err
	}
	if ok {
		return g.resolveToken(ctx, c, tok)
	}
	return g.resolveInteractive(ctx, c)
}

// LogApplied records that the caller has applied the capsule's diff to the
// working tree. The gate never calls this itself.
func (g *Gate) LogApplied(ctx context.Context, c *capsule.Capsule) error {
	fields := append([]string{c.Meta.CapsuleID}, c.Meta.TouchedFiles...)
	return g.logger.Append(ctx, audit.NewEvent(audit.EventCapsuleApplied, fields...))
}

func (g *Gate) requiresApproval(risk model.RiskLevel) bool {
	switch g.cfg.Mode {
	case ModeOff:
		return false
	case ModeStrict:
		return true
	default:
		if risk == model.RiskLow && g.cfg.AutoApproveLow {
			return false
		}
		return true
	}
}

func (g *Gate) resolveToken(ctx context.Context, c *capsule.Capsule, tok *capsule.Token) (bool, error) {
	if tok.CapsuleID != c.Meta.CapsuleID {
		return false, fmt.Errorf("token for %q against capsule %q: %w",
			tok.CapsuleID, c.Meta.CapsuleID, ErrTokenMismatch)
	}

	if tok.Approved {
		by := tok.ApprovedBy
		if by == "" {
			by = "token"
		}
		c.Approve(by, model.MethodToken)
		if err := g.logger.Append(ctx, audit.NewEvent(audit.EventApprovalGranted,
			c.Meta.CapsuleID, "token", by)); err != nil {
			return false, err
		}
		return true, nil
	}

	c.Deny()
	reason := tok.DenialReason
	if reason == "" {
		reason = "Denied by token"
	}
	if err := g.logger.Append(ctx, audit.NewEvent(audit.EventApprovalDenied,
		c.Meta.CapsuleID, reason)); err != nil {
		return false, err
	}
	return false, nil
}

func (g *Gate) resolveInteractive(ctx context.Context, c *capsule.Capsule) (bool, error) {
	if c.Meta.Risk == model.RiskHigh && g.cfg.RequireImpactForHigh && c.Meta.Impact == nil {
		fmt.Fprint(g.out, "Impact analysis required for high-risk changes.\nImpact: ")
		line, err := g.readLine()
		if err != nil {
			return false, err
		}
		c.WithImpact(line)
	}
	if c.Meta.Impact != nil {
		fmt.Fprintf(g.out, "Impact: %s\n", *c.Meta.Impact)
	}

	fmt.Fprint(g.out, "Apply this change? [y/N] ")
	answer, err := g.readLine()
	if err != nil {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		c.Approve("user", model.MethodInteractive)
		if err := g.logger.Append(ctx, audit.NewEvent(audit.EventApprovalGranted,
			c.Meta.CapsuleID, "interactive", "user")); err != nil {
			return false, err
		}
		return true, nil
	default:
		c.Deny()
		if err := g.logger.Append(ctx, audit.NewEvent(audit.EventApprovalDenied,
			c.Meta.CapsuleID, "User denied")); err != nil {
			return false, err
		}
		return false, nil
	}
}

// readLine reads one line from the injected input. EOF counts as an empty
// answer rather than an error, so a closed stdin denies instead of failing.
func (g *Gate) readLine() (string, error) {
	line, err := g.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
