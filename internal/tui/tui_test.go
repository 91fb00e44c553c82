package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sprite-ai/capgate/internal/capsule"
	"github.com/sprite-ai/capgate/internal/model"
)

const testDiff = `diff --git a/main.go b/main.go
index abc1234..def5678 100644
--- a/main.go
+++ b/main.go
@@ -1,5 +1,6 @@
 package main

 func main() {
-	println("hello")
+	println("hello world")
+	println("goodbye")
 }
diff --git a/util.go b/util.go
new file mode 100644
--- /dev/null
+++ b/util.go
@@ -0,0 +1,5 @@
+package main
+
+func add(a, b int) int {
+	return a + b
+}
`

func setupModel(t *testing.T) Model {
	t.Helper()
	c := capsule.New("sess1", "cap_tui", testDiff, model.Classification{
		Risk:         model.RiskMedium,
		Reasons:      []string{"code file: main.go"},
		TouchedFiles: []string{"main.go", "util.go"},
	})
	m := New(c)
	newM, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return newM.(Model)
}

func TestModelInit(t *testing.T) {
	m := setupModel(t)

	if !m.ready {
		t.Error("expected model to be ready after window size")
	}
	if len(m.lines) == 0 {
		t.Error("expected lines to be rendered")
	}
	if len(m.fileOffsets) != 2 {
		t.Errorf("expected 2 file offsets, got %d", len(m.fileOffsets))
	}
}

func TestFileNavigation(t *testing.T) {
	m := setupModel(t)

	newM, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	m = newM.(Model)
	if m.fileIndex != 1 {
		t.Errorf("expected fileIndex 1 after next, got %d", m.fileIndex)
	}

	// Past the end: stays put.
	newM, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	m = newM.(Model)
	if m.fileIndex != 1 {
		t.Errorf("expected fileIndex 1 at end, got %d", m.fileIndex)
	}

	newM, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'N'}})
	m = newM.(Model)
	if m.fileIndex != 0 {
		t.Errorf("expected fileIndex 0 after prev, got %d", m.fileIndex)
	}
}

func TestViewRenders(t *testing.T) {
	m := setupModel(t)

	view := m.View()
	if view == "" {
		t.Error("expected non-empty view")
	}
	if !strings.Contains(view, "cap_tui") {
		t.Error("expected view to contain the capsule id")
	}
	if !strings.Contains(view, "main.go") {
		t.Error("expected view to contain 'main.go'")
	}
}

func TestUnparseableDiffFallsBackToRawLines(t *testing.T) {
	c := capsule.New("sess1", "cap_raw", "completely mangled\ntext\n", model.Classification{})
	m := New(c)
	if len(m.lines) == 0 {
		t.Error("expected raw lines fallback")
	}
	if len(m.fileOffsets) != 1 {
		t.Errorf("expected single pseudo-file offset, got %d", len(m.fileOffsets))
	}
}
