package gate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/sprite-ai/capgate/internal/audit"
	"github.com/sprite-ai/capgate/internal/capsule"
	"github.com/sprite-ai/capgate/internal/model"
)

const testDiff = `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
 package main
+// added one
+// added two
-// removed one
`

type fixture struct {
	store  *capsule.Store
	logger *audit.MemoryLogger
	out    *bytes.Buffer
	gate   *Gate
}

func newFixture(t *testing.T, cfg Guardrails, input string) *fixture {
	t.Helper()
	f := &fixture{
		store:  capsule.NewStore(t.TempDir()),
		logger: audit.NewMemoryLogger(),
		out:    &bytes.Buffer{},
	}
	f.gate = New(cfg, f.store, f.logger, strings.NewReader(input), f.out)
	return f
}

func newCapsule(id string, risk model.RiskLevel) *capsule.Capsule {
	return capsule.New("sess1", id, testDiff, model.Classification{
		Risk:         risk,
		Reasons:      []string{"code file: main.go"},
		TouchedFiles: []string{"main.go"},
	})
}

func hasEvent(logger *audit.MemoryLogger, name string) bool {
	for _, n := range logger.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Scenario A: normal mode with low-risk auto-approval never presents the
// diff and records an auto grant.
func TestProcessAutoApprove(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeNormal, AutoApproveLow: true}, "")
	c := newCapsule("cap_a", model.RiskLow)

	ok, err := f.gate.Process(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected approval")
	}
	if c.Meta.ApprovalStatus != model.StatusApproved ||
		c.Meta.ApprovedBy != "system" ||
		c.Meta.ApprovalMethod != model.MethodAuto {
		t.Errorf("meta = %+v", c.Meta)
	}
	if f.out.Len() != 0 {
		t.Errorf("auto path must not present the diff, wrote %q", f.out.String())
	}
	if hasEvent(f.logger, audit.EventDiffPresented) {
		t.Error("auto path must not log DIFF_PRESENTED")
	}
	if !hasEvent(f.logger, audit.EventRiskClassified) || !hasEvent(f.logger, audit.EventApprovalGranted) {
		t.Errorf("events = %v", f.logger.Names())
	}
}

func TestProcessModeOff(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeOff}, "")
	c := newCapsule("cap_off", model.RiskHigh)

	ok, err := f.gate.Process(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || c.Meta.ApprovalMethod != model.MethodAuto {
		t.Errorf("off mode should auto-approve any risk, meta = %+v", c.Meta)
	}
}

// Scenario B: a matching approved token resolves without touching the
// terminal.
func TestProcessTokenApproved(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeNormal}, "")
	c := newCapsule("cap_b", model.RiskMedium)
	if err := f.store.WriteToken("sess1", "cap_b", capsule.Token{
		CapsuleID:  "cap_b",
		Approved:   true,
		ApprovedBy: "ci-bot",
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := f.gate.Process(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected approval")
	}
	if c.Meta.ApprovalStatus != model.StatusApproved ||
		c.Meta.ApprovedBy != "ci-bot" ||
		c.Meta.ApprovalMethod != model.MethodToken {
		t.Errorf("meta = %+v", c.Meta)
	}
	if !hasEvent(f.logger, audit.EventDiffPresented) {
		t.Error("required approval must log DIFF_PRESENTED")
	}
}

func TestProcessTokenApprovedWithoutActor(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeNormal}, "")
	c := newCapsule("cap_b2", model.RiskMedium)
	if err := f.store.WriteToken("sess1", "cap_b2", capsule.Token{
		CapsuleID: "cap_b2",
		Approved:  true,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.gate.Process(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if c.Meta.ApprovedBy != "token" {
		t.Errorf("approved_by = %q, want fallback \"token\"", c.Meta.ApprovedBy)
	}
}

// Scenario C: a denying token carries its reason into the audit log.
func TestProcessTokenDenied(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeNormal}, "")
	c := newCapsule("cap_c", model.RiskMedium)
	if err := f.store.WriteToken("sess1", "cap_c", capsule.Token{
		CapsuleID:    "cap_c",
		Approved:     false,
		DenialReason: "needs tests",
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := f.gate.Process(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if ok || c.Meta.ApprovalStatus != model.StatusDenied {
		t.Errorf("ok=%v meta=%+v", ok, c.Meta)
	}

	var found bool
	for _, e := range f.logger.Events() {
		if e.Name == audit.EventApprovalDenied {
			found = true
			if len(e.Fields) < 2 || e.Fields[1] != "needs tests" {
				t.Errorf("denial fields = %v", e.Fields)
			}
		}
	}
	if !found {
		t.Error("missing APPROVAL_DENIED event")
	}
}

func TestProcessTokenDeniedDefaultReason(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeNormal}, "")
	c := newCapsule("cap_c2", model.RiskMedium)
	if err := f.store.WriteToken("sess1", "cap_c2", capsule.Token{
		CapsuleID: "cap_c2",
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.gate.Process(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	for _, e := range f.logger.Events() {
		if e.Name == audit.EventApprovalDenied {
			if e.Fields[1] != "Denied by token" {
				t.Errorf("default denial reason = %q", e.Fields[1])
			}
			return
		}
	}
	t.Error("missing APPROVAL_DENIED event")
}

func TestProcessTokenMismatchIsHardError(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeNormal}, "")
	c := newCapsule("cap_d", model.RiskMedium)
	if err := f.store.WriteToken("sess1", "cap_d", capsule.Token{
		CapsuleID: "some-other-capsule",
		Approved:  true,
	}); err != nil {
		t.Fatal(err)
	}

	_, err := f.gate.Process(context.Background(), c)
	if !errors.Is(err, ErrTokenMismatch) {
		t.Errorf("err = %v, want ErrTokenMismatch", err)
	}
	if c.Meta.ApprovalStatus != model.StatusPending {
		t.Errorf("status = %s, want pending after hard error", c.Meta.ApprovalStatus)
	}
}

func TestProcessCorruptTokenIsHardError(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeNormal}, "")
	c := newCapsule("cap_e", model.RiskMedium)
	if err := os.MkdirAll(f.store.Dir("sess1", "cap_e"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.store.TokenPath("sess1", "cap_e"), []byte("{oops"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := f.gate.Process(context.Background(), c)
	if !errors.Is(err, capsule.ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}

func TestProcessInteractiveApprove(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeNormal}, "y\n")
	c := newCapsule("cap_f", model.RiskMedium)

	ok, err := f.gate.Process(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || c.Meta.ApprovedBy != "user" || c.Meta.ApprovalMethod != model.MethodInteractive {
		t.Errorf("ok=%v meta=%+v", ok, c.Meta)
	}
	if !strings.Contains(f.out.String(), "Apply this change?") {
		t.Errorf("missing prompt in output: %q", f.out.String())
	}
}

func TestProcessInteractiveDeny(t *testing.T) {
	for _, answer := range []string{"n\n", "\n", "whatever\n", ""} {
		f := newFixture(t, Guardrails{Mode: ModeNormal}, answer)
		c := newCapsule("cap_g", model.RiskMedium)

		ok, err := f.gate.Process(context.Background(), c)
		if err != nil {
			t.Fatal(err)
		}
		if ok || c.Meta.ApprovalStatus != model.StatusDenied {
			t.Errorf("answer %q: ok=%v status=%s", answer, ok, c.Meta.ApprovalStatus)
		}
		if !hasEvent(f.logger, audit.EventApprovalDenied) {
			t.Errorf("answer %q: missing denial event", answer)
		}
	}
}

func TestProcessInteractiveImpactPrompt(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeNormal, RequireImpactForHigh: true},
		"touches the public API\ny\n")
	c := newCapsule("cap_h", model.RiskHigh)

	ok, err := f.gate.Process(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected approval")
	}
	if c.Meta.Impact == nil || *c.Meta.Impact != "touches the public API" {
		t.Errorf("impact = %v", c.Meta.Impact)
	}
}

func TestProcessImpactNotRePrompted(t *testing.T) {
	// Impact already attached: the only line consumed is the y/N answer.
	f := newFixture(t, Guardrails{Mode: ModeNormal, RequireImpactForHigh: true}, "y\n")
	c := newCapsule("cap_i", model.RiskHigh).WithImpact("already analyzed")

	ok, err := f.gate.Process(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected approval")
	}
	if *c.Meta.Impact != "already analyzed" {
		t.Errorf("impact overwritten: %q", *c.Meta.Impact)
	}
}

// Scenario D: strict mode requires approval even at low risk.
func TestProcessStrictModePresentsLowRisk(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeStrict, AutoApproveLow: true}, "n\n")
	c := newCapsule("cap_j", model.RiskLow)

	ok, err := f.gate.Process(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected denial")
	}
	if !hasEvent(f.logger, audit.EventDiffPresented) {
		t.Error("strict mode must present the diff even for low risk")
	}
}

func TestProcessTerminalStatusIsIdempotent(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeNormal, AutoApproveLow: true}, "")
	c := newCapsule("cap_k", model.RiskLow)

	if _, err := f.gate.Process(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	eventsAfterFirst := len(f.logger.Events())

	ok, err := f.gate.Process(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || c.Meta.ApprovalStatus != model.StatusApproved {
		t.Error("repeated Process changed the outcome")
	}
	if len(f.logger.Events()) != eventsAfterFirst {
		t.Errorf("repeated Process logged %d extra events",
			len(f.logger.Events())-eventsAfterFirst)
	}

	d := newCapsule("cap_l", model.RiskMedium)
	d.Deny()
	ok, err = f.gate.Process(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if ok || d.Meta.ApprovalStatus != model.StatusDenied {
		t.Error("repeated Process on a denied capsule changed the outcome")
	}
}

// failingLogger succeeds until the nth append (1-based), then errors.
type failingLogger struct {
	failOn int
	calls  int
}

var errAuditDown = errors.New("audit sink down")

func (l *failingLogger) Append(ctx context.Context, e audit.Event) error {
	l.calls++
	if l.calls >= l.failOn {
		return errAuditDown
	}
	return nil
}

func (l *failingLogger) Close() error { return nil }

// Audit writes are mandatory: a failed append aborts processing before any
// terminal status is reached.
func TestProcessAuditFailureAborts(t *testing.T) {
	tests := []struct {
		name   string
		failOn int
	}{
		{"classification append fails", 1},
		{"presentation append fails", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := capsule.NewStore(t.TempDir())
			g := New(Guardrails{Mode: ModeNormal}, store, &failingLogger{failOn: tt.failOn},
				strings.NewReader("y\n"), &bytes.Buffer{})
			c := newCapsule("cap_audit", model.RiskMedium)

			ok, err := g.Process(context.Background(), c)
			if !errors.Is(err, errAuditDown) {
				t.Errorf("err = %v, want errAuditDown", err)
			}
			if ok {
				t.Error("failed audit write must not approve")
			}
			if c.Meta.ApprovalStatus != model.StatusPending {
				t.Errorf("status = %s, want pending after audit failure", c.Meta.ApprovalStatus)
			}
		})
	}
}

func TestPresentTruncatesPreview(t *testing.T) {
	var b strings.Builder
	b.WriteString("--- a/big.go\n+++ b/big.go\n@@ -1,1 +1,60 @@\n")
	for i := 0; i < 60; i++ {
		b.WriteString("+line\n")
	}

	f := newFixture(t, Guardrails{Mode: ModeNormal}, "n\n")
	c := capsule.New("sess1", "cap_m", b.String(), model.Classification{
		Risk: model.RiskMedium, TouchedFiles: []string{"big.go"},
	})

	if _, err := f.gate.Process(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.out.String(), "more lines") {
		t.Error("long diffs should carry a truncation note")
	}
}

func TestLogApplied(t *testing.T) {
	f := newFixture(t, Guardrails{Mode: ModeNormal}, "")
	c := newCapsule("cap_n", model.RiskLow)

	if err := f.gate.LogApplied(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	events := f.logger.Events()
	if len(events) != 1 || events[0].Name != audit.EventCapsuleApplied {
		t.Fatalf("events = %v", f.logger.Names())
	}
	if events[0].Fields[0] != "cap_n" || events[0].Fields[1] != "main.go" {
		t.Errorf("fields = %v", events[0].Fields)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"off", ModeOff, false},
		{"normal", ModeNormal, false},
		{"Strict", ModeStrict, false},
		{"", ModeNormal, false},
		{"paranoid", ModeNormal, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
