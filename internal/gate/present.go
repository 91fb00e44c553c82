package gate

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/capgate/internal/capsule"
	"github.com/sprite-ai/capgate/internal/model"
)

// previewLimit bounds how much of the diff is echoed in the review banner.
const previewLimit = 30

var (
	colorRed    = lipgloss.Color("#ff5555")
	colorGreen  = lipgloss.Color("#50fa7b")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorBlue   = lipgloss.Color("#8be9fd")
	colorDim    = lipgloss.Color("#6272a4")

	bannerHighStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	bannerMediumStyle = lipgloss.NewStyle().
				Foreground(colorYellow).
				Bold(true)

	bannerLowStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	reasonStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	addedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	removedStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	truncStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)
)

func bannerStyle(risk model.RiskLevel) lipgloss.Style {
	switch risk {
	case model.RiskHigh:
		return bannerHighStyle
	case model.RiskMedium:
		return bannerMediumStyle
	default:
		return bannerLowStyle
	}
}

// present writes the review banner: risk level, reasons, touched files,
// line counts, and a bounded diff preview.
func (g *Gate) present(c *capsule.Capsule) {
	risk := c.Meta.Risk
	fmt.Fprintf(g.out, "%s %s\n",
		bannerStyle(risk).Render(strings.ToUpper(risk.String())+" RISK"),
		c.Meta.CapsuleID)

	for _, reason := range c.Meta.Reasons {
		fmt.Fprintf(g.out, "  %s\n", reasonStyle.Render("- "+reason))
	}

	if len(c.Meta.TouchedFiles) > 0 {
		fmt.Fprintf(g.out, "Files: %s\n", strings.Join(c.Meta.TouchedFiles, ", "))
	}

	added, removed := c.DiffStats()
	fmt.Fprintf(g.out, "%s %s\n",
		addedStyle.Render(fmt.Sprintf("+%d", added)),
		removedStyle.Render(fmt.Sprintf("-%d", removed)))

	lines := strings.Split(strings.TrimRight(c.Diff, "\n"), "\n")
	shown := lines
	if len(shown) > previewLimit {
		shown = shown[:previewLimit]
	}
	for _, line := range shown {
		switch {
		case strings.HasPrefix(line, "+"):
			fmt.Fprintln(g.out, addedStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprintln(g.out, removedStyle.Render(line))
		default:
			fmt.Fprintln(g.out, line)
		}
	}
	if rest := len(lines) - previewLimit; rest > 0 {
		fmt.Fprintln(g.out, truncStyle.Render(fmt.Sprintf("... (%d more lines)", rest)))
	}
}
