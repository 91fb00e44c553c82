// Package provider infers which coding agent produced the working-tree
// change, to fill a capsule's optional attribution field.
package provider

import (
	"os"
	"path/filepath"
	"strings"
)

// Detect returns a best-effort attribution string for the agent whose
// artifacts are present in or around repoDir, or "" if none is found.
// Detection never fails; absence of signal is just an empty attribution.
func Detect(repoDir string) string {
	if detectClaudeCode(repoDir) {
		return "claude-code"
	}
	if exists(filepath.Join(repoDir, ".aider.chat.history.md")) {
		return "aider"
	}
	if exists(filepath.Join(repoDir, ".codex")) {
		return "codex"
	}
	return ""
}

// Claude Code keeps per-project session logs under ~/.claude/projects/,
// with the project path encoded by replacing / with -.
func detectClaudeCode(repoDir string) bool {
	home, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	absRepo, err := filepath.Abs(repoDir)
	if err != nil {
		return false
	}
	encoded := strings.ReplaceAll(absRepo, "/", "-")
	return exists(filepath.Join(home, ".claude", "projects", encoded))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
