package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/capgate/internal/tui"
)

var showCmd = &cobra.Command{
	Use:   "show <capsule-id>",
	Short: "Display a stored capsule",
	Long: `Load a capsule from the store and print its record and diff. With
--pager, open the diff in an interactive scrollable view instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().Bool("pager", false, "open the diff in an interactive pager")
}

func runShow(cmd *cobra.Command, args []string) error {
	sessionID, _ := cmd.Flags().GetString("session")

	store, err := storeFromConfig()
	if err != nil {
		return err
	}

	c, err := store.Load(sessionID, args[0])
	if err != nil {
		return fmt.Errorf("loading capsule: %w", err)
	}

	if pager, _ := cmd.Flags().GetBool("pager"); pager {
		return tui.Show(c)
	}

	m := c.Meta
	fmt.Printf("Capsule:  %s (session %s)\n", m.CapsuleID, c.SessionID)
	fmt.Printf("Created:  %s\n", m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Risk:     %s\n", strings.ToUpper(m.Risk.String()))
	fmt.Printf("Status:   %s\n", m.ApprovalStatus)
	if m.ApprovalStatus.Terminal() && m.ApprovedBy != "" {
		fmt.Printf("By:       %s (%s)\n", m.ApprovedBy, m.ApprovalMethod)
	}
	if m.Why != nil {
		fmt.Printf("Why:      %s\n", *m.Why)
	}
	if m.Impact != nil {
		fmt.Printf("Impact:   %s\n", *m.Impact)
	}
	if m.ValidationPlan != nil {
		fmt.Printf("Plan:     %s\n", *m.ValidationPlan)
	}
	if m.Provider != nil {
		fmt.Printf("Provider: %s\n", *m.Provider)
	}
	for _, r := range m.Reasons {
		fmt.Printf("  %s\n", r)
	}
	fmt.Println()
	fmt.Print(c.Diff)
	if !strings.HasSuffix(c.Diff, "\n") {
		fmt.Println()
	}
	return nil
}
