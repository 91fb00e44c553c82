package diff

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// HighlightedLine is one diff line split into syntax-colored tokens. The
// capsule pager colors context lines with these while added/removed lines
// keep their flat diff styling.
type HighlightedLine struct {
	Tokens []Token
}

// Token is a chunk of text with an optional ANSI color.
type Token struct {
	Text  string
	Color string // empty for default
}

// Plain returns the line's text with coloring dropped.
func (hl HighlightedLine) Plain() string {
	var b strings.Builder
	for _, t := range hl.Tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// HighlightFile tokenizes all of a parsed file's fragment lines in order,
// one HighlightedLine per line, with trailing newlines stripped. The file's
// display name selects the language; unknown languages degrade to plain
// tokens so the pager never loses content.
func HighlightFile(f *File) []HighlightedLine {
	var lines []string
	for _, frag := range f.Fragments {
		for _, line := range frag.Lines {
			lines = append(lines, strings.TrimRight(line.Line, "\n\r"))
		}
	}

	if len(lines) == 0 {
		return nil
	}

	lexer := lexerForFile(f.Name())
	if lexer == nil {
		return plainLines(lines)
	}

	iterator, err := lexer.Tokenise(nil, strings.Join(lines, "\n"))
	if err != nil {
		return plainLines(lines)
	}

	style := styles.Get("dracula")
	if style == nil {
		style = styles.Fallback
	}

	result := make([]HighlightedLine, 0, len(lines))
	var current HighlightedLine
	for _, token := range iterator.Tokens() {
		color := tokenColor(style, token.Type)
		// A token value may span lines; every newline inside it closes
		// out the line being built.
		rest := token.Value
		for {
			part, more, found := strings.Cut(rest, "\n")
			if part != "" {
				current.Tokens = append(current.Tokens, Token{Text: part, Color: color})
			}
			if !found {
				break
			}
			result = append(result, current)
			current = HighlightedLine{}
			rest = more
		}
	}
	result = append(result, current)

	// The tokenizer may swallow trailing blank lines.
	for len(result) < len(lines) {
		result = append(result, HighlightedLine{Tokens: []Token{{Text: ""}}})
	}

	return result
}

func plainLines(lines []string) []HighlightedLine {
	result := make([]HighlightedLine, len(lines))
	for i, line := range lines {
		result[i] = HighlightedLine{Tokens: []Token{{Text: line}}}
	}
	return result
}

func lexerForFile(filename string) chroma.Lexer {
	lexer := lexers.Match(filename)
	if lexer == nil {
		if ext := filepath.Ext(filename); ext != "" {
			lexer = lexers.Match("file" + ext)
		}
	}
	if lexer != nil {
		lexer = chroma.Coalesce(lexer)
	}
	return lexer
}

func tokenColor(style *chroma.Style, tt chroma.TokenType) string {
	entry := style.Get(tt)
	if entry.Colour.IsSet() {
		return entry.Colour.String()
	}
	return ""
}
