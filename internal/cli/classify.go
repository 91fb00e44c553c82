package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/capgate/internal/classify"
	"github.com/sprite-ai/capgate/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [commit-range]",
	Short: "Classify a diff by risk and output a report (non-interactive)",
	Long: `Classify the diff and output its risk level, reasons, and touched
files. Useful for CI, pre-commit hooks, and piping into other tools.

Exit codes:
  0 — low risk
  1 — medium risk
  2 — high risk`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringP("format", "f", "text", "output format: text, json, markdown")
	classifyCmd.Flags().IntP("context", "C", 3, "lines of context around changes")
}

func runClassify(cmd *cobra.Command, args []string) error {
	contextLines, _ := cmd.Flags().GetInt("context")

	raw, err := getDiff(args, contextLines)
	if err != nil {
		return err
	}

	if strings.TrimSpace(raw) == "" {
		fmt.Println("No changes to classify.")
		return nil
	}

	cls := classify.Classify(raw)

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		err = classifyJSON(cls)
	case "markdown":
		err = classifyMarkdown(cls)
	default:
		err = classifyText(cls)
	}
	if err != nil {
		return err
	}

	// Exit code mirrors the risk level for scripting.
	switch cls.Risk {
	case model.RiskHigh:
		os.Exit(2)
	case model.RiskMedium:
		os.Exit(1)
	}
	return nil
}

func classifyText(cls model.Classification) error {
	fmt.Printf("Risk: %s\n", strings.ToUpper(cls.Risk.String()))
	if cls.PublicSurfaceChanges {
		fmt.Println("Public surface: changed")
	}
	fmt.Printf("Files: %d\n\n", len(cls.TouchedFiles))

	for _, r := range cls.Reasons {
		fmt.Printf("  %s %s\n", riskIcon(cls.Risk), r)
	}
	if len(cls.Reasons) > 0 {
		fmt.Println()
	}

	for _, f := range cls.TouchedFiles {
		fmt.Printf("  %s\n", f)
	}
	return nil
}

func classifyJSON(cls model.Classification) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cls)
}

func classifyMarkdown(cls model.Classification) error {
	fmt.Printf("## Risk Report\n\n")
	fmt.Printf("**Risk:** %s | **Files:** %d | **Public surface changed:** %v\n\n",
		strings.ToUpper(cls.Risk.String()), len(cls.TouchedFiles), cls.PublicSurfaceChanges)

	if len(cls.Reasons) == 0 {
		fmt.Println("No findings.")
		return nil
	}

	fmt.Println("| Reason |")
	fmt.Println("|--------|")
	for _, r := range cls.Reasons {
		fmt.Printf("| %s |\n", r)
	}

	return nil
}

func riskIcon(r model.RiskLevel) string {
	switch r {
	case model.RiskHigh:
		return "! "
	case model.RiskMedium:
		return "* "
	default:
		return "- "
	}
}
