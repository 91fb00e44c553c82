package classify

import (
	"sort"
	"testing"

	"github.com/sprite-ai/capgate/internal/model"
)

const docsOnlyDiff = `diff --git a/README.md b/README.md
index abc1234..def5678 100644
--- a/README.md
+++ b/README.md
@@ -1,3 +1,4 @@
 # myapp
+
+Now with more docs.
`

func TestClassifyDocsOnly(t *testing.T) {
	result := Classify(docsOnlyDiff)

	if result.Risk != model.RiskLow {
		t.Errorf("expected low risk, got %s", result.Risk)
	}
	if result.PublicSurfaceChanges {
		t.Error("docs-only diff should not flag public surface changes")
	}
	if len(result.TouchedFiles) != 1 || result.TouchedFiles[0] != "README.md" {
		t.Errorf("touched files = %v", result.TouchedFiles)
	}
}

const publicAPIDiff = `diff --git a/src/lib.rs b/src/lib.rs
index abc1234..def5678 100644
--- a/src/lib.rs
+++ b/src/lib.rs
@@ -10,2 +10,5 @@
 fn internal() {}
+
+pub fn new_api() {}
`

func TestClassifyPublicAPI(t *testing.T) {
	result := Classify(publicAPIDiff)

	if result.Risk != model.RiskHigh {
		t.Errorf("expected high risk, got %s", result.Risk)
	}
	if !result.PublicSurfaceChanges {
		t.Error("expected public surface changes flag")
	}
	if !containsReason(result.Reasons, "code with public API: src/lib.rs") {
		t.Errorf("reasons = %v", result.Reasons)
	}
}

// The public-API sweep must also fire when the touched file itself has no
// recognized source extension.
const publicAPIUnknownFileDiff = `--- a/scripts/gen
+++ b/scripts/gen
@@ -1,1 +1,2 @@
 #!/bin/sh
+pub fn exported() {}
`

func TestClassifyPublicAPISweep(t *testing.T) {
	result := Classify(publicAPIUnknownFileDiff)

	if result.Risk != model.RiskHigh {
		t.Errorf("expected high risk, got %s", result.Risk)
	}
	if !result.PublicSurfaceChanges {
		t.Error("expected public surface changes flag")
	}
	if !containsReason(result.Reasons, "public API signature changed") {
		t.Errorf("reasons = %v", result.Reasons)
	}
}

const mixedDiff = `diff --git a/README.md b/README.md
--- a/README.md
+++ b/README.md
@@ -1,1 +1,2 @@
 # myapp
+More docs.
diff --git a/internal/util.go b/internal/util.go
--- a/internal/util.go
+++ b/internal/util.go
@@ -5,1 +5,2 @@
 package util
+func helper() int { return 1 }
`

func TestClassifyMixedDocsAndCode(t *testing.T) {
	result := Classify(mixedDiff)

	if result.Risk != model.RiskMedium {
		t.Errorf("expected medium risk (max of low, medium), got %s", result.Risk)
	}
	if !containsReason(result.Reasons, "documentation: README.md") {
		t.Errorf("missing documentation reason: %v", result.Reasons)
	}
	if !containsReason(result.Reasons, "code file: internal/util.go") {
		t.Errorf("missing code file reason: %v", result.Reasons)
	}
	want := []string{"README.md", "internal/util.go"}
	if len(result.TouchedFiles) != 2 || result.TouchedFiles[0] != want[0] || result.TouchedFiles[1] != want[1] {
		t.Errorf("touched files = %v, want %v", result.TouchedFiles, want)
	}
}

func TestClassifyReasonsSortedAndDeduped(t *testing.T) {
	for _, diffText := range []string{docsOnlyDiff, publicAPIDiff, mixedDiff, securityDiff, depDiff} {
		result := Classify(diffText)
		if !sort.StringsAreSorted(result.Reasons) {
			t.Errorf("reasons not sorted: %v", result.Reasons)
		}
		seen := map[string]bool{}
		for _, r := range result.Reasons {
			if seen[r] {
				t.Errorf("duplicate reason %q in %v", r, result.Reasons)
			}
			seen[r] = true
		}
	}
}

const securityDiff = `--- a/internal/session.go
+++ b/internal/session.go
@@ -20,1 +20,2 @@
 func lookup() {}
+	s.password = hashPassword(input)
`

func TestClassifySecurityKeywords(t *testing.T) {
	result := Classify(securityDiff)

	if result.Risk != model.RiskHigh {
		t.Errorf("expected high risk, got %s", result.Risk)
	}
	if !containsReason(result.Reasons, "security-sensitive code modified") {
		t.Errorf("reasons = %v", result.Reasons)
	}
}

const depDiff = `--- a/Cargo.toml
+++ b/Cargo.toml
@@ -8,2 +8,4 @@
 [dependencies]
+serde = "1.0.175"
`

func TestClassifyDependencyChange(t *testing.T) {
	result := Classify(depDiff)

	if result.Risk != model.RiskHigh {
		t.Errorf("expected high risk, got %s", result.Risk)
	}
	// Cargo.toml is a dependency manifest, so the per-file rule already
	// reports it as public surface.
	if !result.PublicSurfaceChanges {
		t.Error("expected public surface changes for manifest edit")
	}
	if !containsReason(result.Reasons, "dependency manifest: Cargo.toml") {
		t.Errorf("reasons = %v", result.Reasons)
	}
}

const depPinSweepDiff = `--- a/notes/deps.cfg
+++ b/notes/deps.cfg
@@ -1,1 +1,2 @@
 # pinned
+leftpad = "0.2.1"
`

func TestClassifyDependencyPinSweep(t *testing.T) {
	result := Classify(depPinSweepDiff)

	if result.Risk != model.RiskHigh {
		t.Errorf("expected high risk, got %s", result.Risk)
	}
	if !containsReason(result.Reasons, "dependency or config change") {
		t.Errorf("reasons = %v", result.Reasons)
	}
}

func TestClassifyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		path string
		risk model.RiskLevel
	}{
		{"workflow", ".github/workflows/ci.yml", model.RiskHigh},
		{"dockerfile", "Dockerfile", model.RiskHigh},
		{"env_file", ".env.local", model.RiskHigh},
		{"config_prefix", "Config.yaml", model.RiskHigh},
		{"auth_path", "src/auth/login.go", model.RiskHigh},
		{"test_file", "pkg/thing_test.go", model.RiskMedium},
		{"plain_binary", "assets/logo.png", model.RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diffText := "--- a/" + tt.path + "\n+++ b/" + tt.path + "\n@@ -1,1 +1,1 @@\n+x\n"
			result := Classify(diffText)
			if result.Risk != tt.risk {
				t.Errorf("Classify(%s): risk = %s, want %s (reasons %v)",
					tt.path, result.Risk, tt.risk, result.Reasons)
			}
		})
	}
}

func TestClassifyMalformedAndEmpty(t *testing.T) {
	for _, diffText := range []string{"", "not a diff at all\njust text\n", "+++\n---\n"} {
		result := Classify(diffText)
		if result.Risk != model.RiskLow {
			t.Errorf("Classify(%q): risk = %s, want low", diffText, result.Risk)
		}
		if len(result.TouchedFiles) != 0 {
			t.Errorf("Classify(%q): touched files = %v, want none", diffText, result.TouchedFiles)
		}
	}
}

// Only one side prefix may be stripped from a header path; a repo with a
// real top-level directory named b must not yield two entries for one file.
func TestClassifyFileUnderDirNamedB(t *testing.T) {
	diffText := `--- a/b/pkg/util.go
+++ b/b/pkg/util.go
@@ -1,1 +1,2 @@
 package util
+var x = 1
`
	result := Classify(diffText)
	if len(result.TouchedFiles) != 1 || result.TouchedFiles[0] != "b/pkg/util.go" {
		t.Errorf("touched files = %v, want [b/pkg/util.go]", result.TouchedFiles)
	}
}

func TestClassifyExcludesDevNull(t *testing.T) {
	diffText := `--- /dev/null
+++ b/newfile.txt
@@ -0,0 +1,1 @@
+hello
`
	result := Classify(diffText)
	if len(result.TouchedFiles) != 1 || result.TouchedFiles[0] != "newfile.txt" {
		t.Errorf("touched files = %v, want [newfile.txt]", result.TouchedFiles)
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
