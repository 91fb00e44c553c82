// Package classify implements path- and pattern-based risk classification
// of unified diffs.
package classify

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/sprite-ai/capgate/internal/model"
)

// noFileSentinel is what diff tooling emits for the missing side of an
// added or deleted file.
const noFileSentinel = "/dev/null"

// Dependency manifest filenames across ecosystems. Any change to one of
// these is treated as a public-surface, high-risk change.
var manifestFiles = map[string]bool{
	"Cargo.toml":       true,
	"package.json":     true,
	"pyproject.toml":   true,
	"requirements.txt": true,
	"go.mod":           true,
}

var docExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".rst":  true,
	".adoc": true,
}

var docPrefixes = []string{"readme", "changelog", "license", "contributing", "authors"}

var sourceExtensions = map[string]bool{
	".rs":   true,
	".py":   true,
	".js":   true,
	".jsx":  true,
	".ts":   true,
	".tsx":  true,
	".go":   true,
	".java": true,
	".c":    true,
	".h":    true,
	".cc":   true,
	".cpp":  true,
	".hpp":  true,
}

// publicAPIRe matches the start of a publicly-visible declaration in the
// supported source languages, or a module export in script languages.
var publicAPIRe = regexp.MustCompile(`^(?:` +
	`pub(?:\([^)]*\))?\s+(?:fn|struct|enum|trait|type|const|static|mod|unsafe\s+fn)\b` +
	`|public\s+(?:class|interface|enum|static|final|abstract)\b` +
	`|export\s+(?:default\s+)?(?:function|class|const|let|var|async|interface|type|enum)\b` +
	`|module\.exports\s*=` +
	`)`)

// securityRe flags lines that touch authentication, cryptography, or
// access-control vocabulary.
var securityRe = regexp.MustCompile(`(?i)\b(auth|password|secret|token|key|credential|` +
	`encrypt|decrypt|hash|sign|verify|` +
	`permission|access|role|privilege)`)

// Added dependency markers: a new [dependencies] table, a "dependencies"
// manifest key, or a version-pinned dependency line.
var (
	depTableRe = regexp.MustCompile(`^\[dependencies`)
	depKeyRe   = regexp.MustCompile(`"dependencies"`)
	depPinRe   = regexp.MustCompile(`^[\w.@/-]+\s*[:=]\s*"?[~^]?v?\d+\.\d+`)
)

// fileChange collects the added/removed lines attributed to one touched
// file during the scan.
type fileChange struct {
	path  string
	lines []string // changed lines with the +/- marker stripped
}

// Classify runs the risk classifier over raw unified-diff text. It is pure
// and never fails: malformed input degrades to an empty classification at
// the lowest risk level.
func Classify(diffText string) model.Classification {
	changes := scan(diffText)

	result := model.Classification{Risk: model.RiskLow}
	var reasons []string

	for _, fc := range changes {
		result.TouchedFiles = append(result.TouchedFiles, fc.path)

		risk, reason, public := classifyFile(fc)
		result.Risk = model.MaxRisk(result.Risk, risk)
		reasons = append(reasons, reason)
		if public {
			result.PublicSurfaceChanges = true
		}
	}

	reasons = append(reasons, sweep(diffText, &result)...)

	sort.Strings(reasons)
	result.Reasons = dedupe(reasons)
	return result
}

// scan extracts touched files (first-appearance order, sentinel excluded)
// and attributes each changed line to the most recently named file.
func scan(diffText string) []*fileChange {
	var (
		order   []*fileChange
		byPath  = map[string]*fileChange{}
		current *fileChange
	)

	record := func(p string) {
		fc, ok := byPath[p]
		if !ok {
			fc = &fileChange{path: p}
			byPath[p] = fc
			order = append(order, fc)
		}
		current = fc
	}

	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ "), strings.HasPrefix(line, "--- "):
			if p := headerPath(line[4:]); p != "" {
				record(p)
			}
		case strings.HasPrefix(line, "+"), strings.HasPrefix(line, "-"):
			if current != nil {
				current.lines = append(current.lines, line[1:])
			}
		}
	}
	return order
}

// headerPath normalizes the path portion of a +++/--- header line.
// Returns "" for the /dev/null sentinel or an empty remainder.
func headerPath(rest string) string {
	// Strip a trailing timestamp if the producer emitted one.
	if idx := strings.IndexByte(rest, '\t'); idx >= 0 {
		rest = rest[:idx]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || rest == noFileSentinel {
		return ""
	}
	// Strip exactly one side prefix. A repo can have a real top-level
	// directory named a or b, so stripping both would mangle the path.
	if p, ok := strings.CutPrefix(rest, "a/"); ok {
		return p
	}
	return strings.TrimPrefix(rest, "b/")
}

// classifyFile applies the per-file heuristics in precedence order: first
// match wins.
func classifyFile(fc *fileChange) (risk model.RiskLevel, reason string, public bool) {
	p := fc.path
	base := path.Base(p)
	lowerBase := strings.ToLower(base)
	lowerPath := strings.ToLower(p)
	ext := strings.ToLower(path.Ext(base))

	switch {
	case docExtensions[ext] || hasAnyPrefix(lowerBase, docPrefixes):
		return model.RiskLow, fmt.Sprintf("documentation: %s", p), false

	case manifestFiles[base]:
		return model.RiskHigh, fmt.Sprintf("dependency manifest: %s", p), true

	case strings.Contains(p, ".github/workflows") || base == "Dockerfile":
		return model.RiskHigh, fmt.Sprintf("build/CI configuration: %s", p), false

	case strings.HasPrefix(base, ".env") || strings.HasPrefix(lowerBase, "config."):
		return model.RiskHigh, fmt.Sprintf("environment/config file: %s", p), false

	case strings.Contains(lowerPath, "auth") || strings.Contains(lowerPath, "security"):
		return model.RiskHigh, fmt.Sprintf("auth/security-related path: %s", p), false

	case strings.Contains(lowerPath, "test") || strings.Contains(lowerPath, "spec"):
		return model.RiskMedium, fmt.Sprintf("test file: %s", p), false

	case sourceExtensions[ext]:
		for _, line := range fc.lines {
			if publicAPIRe.MatchString(strings.TrimSpace(line)) {
				return model.RiskHigh, fmt.Sprintf("code with public API: %s", p), true
			}
		}
		return model.RiskMedium, fmt.Sprintf("code file: %s", p), false

	default:
		return model.RiskLow, fmt.Sprintf("other file: %s", p), false
	}
}

// sweep runs the whole-diff pattern checks. It may raise the aggregate
// risk but never lowers it.
func sweep(diffText string, result *model.Classification) []string {
	var reasons []string

	added, removed := changedLines(diffText)
	changed := append(added, removed...)

	for _, line := range changed {
		if publicAPIRe.MatchString(strings.TrimSpace(line)) {
			result.PublicSurfaceChanges = true
			if result.Risk < model.RiskHigh {
				result.Risk = model.RiskHigh
				reasons = append(reasons, "public API signature changed")
			}
			break
		}
	}

	if result.Risk < model.RiskHigh {
		for _, line := range changed {
			if securityRe.MatchString(line) {
				result.Risk = model.RiskHigh
				reasons = append(reasons, "security-sensitive code modified")
				break
			}
		}
	}

	if result.Risk < model.RiskHigh {
		for _, line := range added {
			trimmed := strings.TrimSpace(line)
			if depTableRe.MatchString(trimmed) || depKeyRe.MatchString(trimmed) || depPinRe.MatchString(trimmed) {
				result.Risk = model.RiskHigh
				reasons = append(reasons, "dependency or config change")
				break
			}
		}
	}

	return reasons
}

// changedLines returns the added and removed lines of the diff, header
// lines excluded, markers stripped.
func changedLines(diffText string) (added, removed []string) {
	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added = append(added, line[1:])
		case strings.HasPrefix(line, "-"):
			removed = append(removed, line[1:])
		}
	}
	return added, removed
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func dedupe(sorted []string) []string {
	var out []string
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
