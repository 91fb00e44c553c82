package tui

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/capgate/internal/diff"
	"github.com/sprite-ai/capgate/internal/model"
)

func riskStyle(r model.RiskLevel) lipgloss.Style {
	switch r {
	case model.RiskHigh:
		return riskHighStyle
	case model.RiskMedium:
		return riskMediumStyle
	default:
		return riskLowStyle
	}
}

// renderDiffSet produces the pager content and the line offset of each
// file header.
func renderDiffSet(ds *diff.DiffSet) (lines []string, fileOffsets []int) {
	for i, f := range ds.Files {
		fileOffsets = append(fileOffsets, len(lines))
		lines = append(lines, fileHeaderStyle.Render(
			fmt.Sprintf("%s  +%d -%d", f.Name(), f.AddedLines, f.DeletedLines)))
		lines = append(lines, renderFile(f)...)
		if i < len(ds.Files)-1 {
			lines = append(lines, "")
		}
	}
	return lines, fileOffsets
}

// renderFile renders one file's fragments with line numbers, diff
// coloring, and syntax highlighting on context lines.
func renderFile(f *diff.File) []string {
	var out []string

	highlighted := diff.HighlightFile(f)
	hlIdx := 0

	for _, frag := range f.Fragments {
		out = append(out, hunkHeaderStyle.Render(formatHunkHeader(frag)))

		oldLine := int(frag.OldPosition)
		newLine := int(frag.NewPosition)

		for _, line := range frag.Lines {
			content := strings.TrimRight(line.Line, "\n\r")
			var tokens []diff.Token
			if hlIdx < len(highlighted) {
				tokens = highlighted[hlIdx].Tokens
				hlIdx++
			}

			switch line.Op {
			case gitdiff.OpAdd:
				out = append(out, numCol(0, newLine)+" "+addedLineStyle.Render("+"+content))
				newLine++
			case gitdiff.OpDelete:
				out = append(out, numCol(oldLine, 0)+" "+deletedLineStyle.Render("-"+content))
				oldLine++
			default:
				out = append(out, numCol(oldLine, newLine)+" "+renderContext(content, tokens))
				oldLine++
				newLine++
			}
		}
	}

	return out
}

func numCol(oldNum, newNum int) string {
	format := func(n int) string {
		if n > 0 {
			return fmt.Sprintf("%4d", n)
		}
		return "    "
	}
	return lineNumberStyle.Render(format(oldNum)) + " " + lineNumberStyle.Render(format(newNum))
}

// renderContext applies syntax colors to an unchanged line.
func renderContext(content string, tokens []diff.Token) string {
	if len(tokens) == 0 {
		return " " + content
	}
	var b strings.Builder
	b.WriteString(" ")
	for _, tok := range tokens {
		if tok.Color != "" {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
		} else {
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

func formatHunkHeader(frag *gitdiff.TextFragment) string {
	old := fmt.Sprintf("-%d", frag.OldPosition)
	if frag.OldLines != 1 {
		old += fmt.Sprintf(",%d", frag.OldLines)
	}
	new := fmt.Sprintf("+%d", frag.NewPosition)
	if frag.NewLines != 1 {
		new += fmt.Sprintf(",%d", frag.NewLines)
	}

	header := fmt.Sprintf("@@ %s %s @@", old, new)
	if frag.Comment != "" {
		header += " " + frag.Comment
	}
	return header
}
