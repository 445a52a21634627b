package document

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

const escapedDollar = "MWDOLLARX"

var (
	blockMathRe  = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	inlineMathRe = regexp.MustCompile(`\$([^$\n]+?)\$`)

	// fenced blocks (an unclosed fence runs to the end) and inline code spans
	codeRe = regexp.MustCompile("(?ms)" +
		"^ {0,3}```[^\n]*\n(?:.*?^ {0,3}```[ \t]*$|.*\\z)" +
		"|^ {0,3}~~~[^\n]*\n(?:.*?^ {0,3}~~~[ \t]*$|.*\\z)" +
		"|``[^`].*?``" +
		"|`[^`\n]+`")

	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
)

// RenderPreview converts Markdown to HTML for the live preview.
// TeX spans are lifted out before parsing so emphasis and escapes inside
// formulas survive, then restored as \( \) and \[ \] for a client-side renderer.
// Code spans, fenced code and \$ are left to goldmark.
func RenderPreview(markdown string) (string, error) {
	var spans []string
	hold := func(tex string, block bool) string {
		tex = strings.ReplaceAll(tex, escapedDollar, `\$`)
		spans = append(spans, mathHTML(tex, block))
		key := fmt.Sprintf("MWMATH%dX", len(spans)-1)
		if block {
			return "\n\n" + key + "\n\n"
		}
		return key
	}
	liftMath := func(text string) string {
		text = strings.ReplaceAll(text, `\$`, escapedDollar)
		text = blockMathRe.ReplaceAllStringFunc(text, func(m string) string {
			return hold(blockMathRe.FindStringSubmatch(m)[1], true)
		})
		return inlineMathRe.ReplaceAllStringFunc(text, func(m string) string {
			return hold(inlineMathRe.FindStringSubmatch(m)[1], false)
		})
	}

	var src strings.Builder
	last := 0
	for _, loc := range codeRe.FindAllStringIndex(markdown, -1) {
		src.WriteString(liftMath(markdown[last:loc[0]]))
		src.WriteString(markdown[loc[0]:loc[1]])
		last = loc[1]
	}
	src.WriteString(liftMath(markdown[last:]))

	var buf bytes.Buffer
	if err := md.Convert([]byte(src.String()), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}

	out := buf.String()
	for i := len(spans) - 1; i >= 0; i-- {
		key := fmt.Sprintf("MWMATH%dX", i)
		out = strings.ReplaceAll(out, "<p>"+key+"</p>", spans[i])
		out = strings.ReplaceAll(out, key, spans[i])
	}
	return strings.ReplaceAll(out, escapedDollar, "$"), nil
}

func mathHTML(tex string, block bool) string {
	tex = html.EscapeString(strings.TrimSpace(tex))
	if block {
		return `<div class="math-display">\[` + tex + `\]</div>`
	}
	return `<span class="math-inline">\(` + tex + `\)</span>`
}
