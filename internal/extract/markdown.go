// Package extract turns markdown documents into indexable plain text.
package extract

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Result is the extracted form of a document.
type Result struct {
	Title string
	Text  string
}

var (
	// Matches frontmatter: ---\n...\n---
	frontmatterPattern = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---[ \t]*(\r?\n|$)`)

	// Three or more newlines, possibly with trailing spaces between them.
	blankRunPattern = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+\n`)

	// Horizontal whitespace runs.
	spaceRunPattern = regexp.MustCompile(`[ \t]+`)
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown extracts the title and plain text of a markdown document.
// Code blocks, inline code, images and raw HTML are dropped; links keep
// their text. Blocks are separated by single blank lines.
func Markdown(source []byte, fallbackTitle string) Result {
	source = frontmatterPattern.ReplaceAll(source, nil)

	doc := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	title := ""

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindCodeSpan,
			ast.KindImage, ast.KindHTMLBlock, ast.KindRawHTML:
			return ast.WalkSkipChildren, nil

		case ast.KindText:
			if !entering {
				return ast.WalkContinue, nil
			}
			t := n.(*ast.Text)
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}

		case ast.KindString:
			if entering {
				b.Write(n.(*ast.String).Value)
			}

		case ast.KindAutoLink:
			if entering {
				b.Write(n.(*ast.AutoLink).Label(source))
			}
			return ast.WalkSkipChildren, nil

		case ast.KindHeading:
			if entering {
				if h := n.(*ast.Heading); h.Level == 1 && title == "" {
					title = strings.TrimSpace(spaceRunPattern.ReplaceAllString(inlineText(h, source), " "))
				}
				return ast.WalkContinue, nil
			}
			b.WriteString("\n\n")

		case ast.KindParagraph, ast.KindThematicBreak:
			if !entering {
				b.WriteString("\n\n")
			}

		case ast.KindTextBlock:
			if !entering {
				b.WriteByte('\n')
			}

		case ast.KindList, ast.KindBlockquote:
			if !entering {
				b.WriteString("\n\n")
			}

		case east.KindTableCell:
			if !entering {
				b.WriteByte(' ')
			}

		case east.KindTableRow, east.KindTableHeader:
			if !entering {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	if title == "" {
		title = TitleFromPath(fallbackTitle)
	}
	return Result{Title: title, Text: normalizeWhitespace(b.String())}
}

// inlineText concatenates the literal text under n, skipping code and images.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c.Kind() {
		case ast.KindCodeSpan, ast.KindImage, ast.KindRawHTML:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			b.Write(c.(*ast.Text).Segment.Value(source))
		case ast.KindString:
			b.Write(c.(*ast.String).Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// normalizeWhitespace trims lines, collapses horizontal runs and limits
// blank lines to one between blocks.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunPattern.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRunPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// TitleFromPath derives a title from a document key: the base name without
// extension, with '_' and '-' turned into spaces.
func TitleFromPath(key string) string {
	base := path.Base(strings.ReplaceAll(key, "\\", "/"))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.TrimSpace(spaceRunPattern.ReplaceAllString(base, " "))
}

// Preview truncates text to at most n runes, appending an ellipsis when
// anything was cut.
func Preview(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	count := 0
	for i := range text {
		if count == n {
			return strings.TrimRightFunc(text[:i], isSpace) + "…"
		}
		count++
	}
	return text
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
