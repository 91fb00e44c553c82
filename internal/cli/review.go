package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/capgate/internal/capsule"
	"github.com/sprite-ai/capgate/internal/classify"
	"github.com/sprite-ai/capgate/internal/diff"
	"github.com/sprite-ai/capgate/internal/gate"
	"github.com/sprite-ai/capgate/internal/provider"
)

var reviewCmd = &cobra.Command{
	Use:   "review [commit-range]",
	Short: "Capture a diff as a capsule and run it through the approval gate",
	Long: `Capture the diff as a change capsule, classify its risk, and resolve
approval through the configured guardrails. By default, reviews
uncommitted changes against HEAD. Optionally specify a commit range.

Examples:
  capgate review                     # working tree vs HEAD
  capgate review HEAD~1..HEAD        # last commit
  capgate review main...HEAD         # branch vs main
  git diff | capgate review -        # pipe any diff`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().String("id", "", "capsule identifier (default: generated)")
	reviewCmd.Flags().String("why", "", "why this change is being made")
	reviewCmd.Flags().String("impact", "", "expected impact of the change")
	reviewCmd.Flags().String("validation-plan", "", "how the change will be validated")
	reviewCmd.Flags().IntP("context", "C", 3, "lines of context around changes")
	reviewCmd.Flags().Bool("stat", false, "print diff stats and exit (non-interactive)")
	reviewCmd.Flags().Bool("apply", false, "apply the diff to the working tree if approved")
}

func runReview(cmd *cobra.Command, args []string) error {
	contextLines, _ := cmd.Flags().GetInt("context")

	raw, err := getDiff(args, contextLines)
	if err != nil {
		return err
	}

	if strings.TrimSpace(raw) == "" {
		fmt.Println("No changes to review.")
		return nil
	}

	if stat, _ := cmd.Flags().GetBool("stat"); stat {
		ds, err := diff.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing diff: %w", err)
		}
		return printStat(ds)
	}

	sessionID, _ := cmd.Flags().GetString("session")
	capsuleID, _ := cmd.Flags().GetString("id")
	if capsuleID == "" {
		capsuleID = capsule.NewID()
	}

	c := capsule.New(sessionID, capsuleID, raw, classify.Classify(raw))
	if why, _ := cmd.Flags().GetString("why"); why != "" {
		c.WithWhy(why)
	}
	if impact, _ := cmd.Flags().GetString("impact"); impact != "" {
		c.WithImpact(impact)
	}
	if plan, _ := cmd.Flags().GetString("validation-plan"); plan != "" {
		c.WithValidationPlan(plan)
	}

	repoDir, repoErr := gitRepoRoot()
	if repoErr == nil {
		if p := provider.Detect(repoDir); p != "" {
			c.WithProvider(p)
		}
	}

	store, err := storeFromConfig()
	if err != nil {
		return err
	}
	if _, err := store.Save(c); err != nil {
		return fmt.Errorf("saving capsule: %w", err)
	}

	logger, err := loggerFromConfig()
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer logger.Close()

	cfg, err := guardrailsFromConfig()
	if err != nil {
		return err
	}

	g := gate.New(cfg, store, logger, os.Stdin, os.Stdout)
	approved, err := g.Process(cmd.Context(), c)

	// Persist whatever status the gate settled on, even when it errored.
	if _, saveErr := store.Save(c); saveErr != nil && err == nil {
		err = fmt.Errorf("saving capsule: %w", saveErr)
	}
	if err != nil {
		return err
	}

	if !approved {
		fmt.Fprintf(os.Stderr, "Capsule %s denied.\n", c.Meta.CapsuleID)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Capsule %s approved (%s).\n", c.Meta.CapsuleID, c.Meta.ApprovalMethod)

	if apply, _ := cmd.Flags().GetBool("apply"); apply {
		if repoErr != nil {
			return fmt.Errorf("cannot apply outside a git repository: %w", repoErr)
		}
		if err := diff.GitApply(repoDir, c.Diff); err != nil {
			return fmt.Errorf("applying diff: %w", err)
		}
		if err := g.LogApplied(cmd.Context(), c); err != nil {
			return fmt.Errorf("recording apply: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Diff applied.")
	}

	return nil
}

func getDiff(args []string, contextLines int) (string, error) {
	// Read from stdin if "-" is passed
	if len(args) == 1 && args[0] == "-" {
		data, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	// Find repo root
	repoDir, err := gitRepoRoot()
	if err != nil {
		return "", fmt.Errorf("not in a git repository (or git not installed): %w", err)
	}

	if len(args) == 1 {
		// Explicit commit range
		return diff.GitDiffRange(repoDir, args[0], contextLines)
	}

	// Default: working tree vs HEAD
	return diff.GitDiffWorkingTree(repoDir, contextLines)
}

func printStat(ds *diff.DiffSet) error {
	files, added, deleted := ds.Stats()
	fmt.Printf("%d file(s) changed, %d insertions(+), %d deletions(-)\n\n", files, added, deleted)
	for _, f := range ds.Files {
		status := "M"
		if f.IsNew {
			status = "A"
		} else if f.IsDeleted {
			status = "D"
		} else if f.IsRenamed {
			status = "R"
		}
		fmt.Printf("  %s %-50s +%-4d -%d\n", status, f.Name(), f.AddedLines, f.DeletedLines)
	}
	return nil
}

func gitRepoRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
