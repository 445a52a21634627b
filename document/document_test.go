package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		title    string
		wantHead string
	}{
		{
			name:     "mathml fragment",
			fragment: "<p>Hi <math><mi>x</mi></math></p>",
			title:    "Exported Document",
			wantHead: "<title>Exported Document</title>",
		},
		{
			name:     "empty fragment still yields a document",
			fragment: "",
			title:    "Exported Document",
			wantHead: "<title>Exported Document</title>",
		},
		{
			name:     "empty title uses default",
			fragment: "<h1>T</h1>",
			title:    "",
			wantHead: "<title>Document</title>",
		},
		{
			name:     "title is escaped",
			fragment: "<p>x</p>",
			title:    "A & B <draft>",
			wantHead: "<title>A &amp; B &lt;draft&gt;</title>",
		},
		{
			name:     "malformed fragment inserted as is",
			fragment: "<p><b>unclosed",
			title:    "T",
			wantHead: "<title>T</title>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := string(Assemble(tt.fragment, tt.title))

			assert.Contains(t, doc, "xmlns:o='urn:schemas-microsoft-com:office:office'")
			assert.Contains(t, doc, "xmlns:w='urn:schemas-microsoft-com:office:word'")
			assert.Contains(t, doc, "xmlns='http://www.w3.org/TR/REC-html40'")
			assert.Contains(t, doc, `<meta charset="utf-8">`)
			assert.Contains(t, doc, tt.wantHead)
			assert.Contains(t, doc, "font-family: 'Times New Roman', serif")
			assert.Contains(t, doc, "font-size: 12pt")
			assert.Contains(t, doc, "h1, h2, h3, h4, h5, h6 { font-family: 'Arial', sans-serif; }")
			assert.Contains(t, doc, ".math-display { text-align: center; margin: 1em 0; }")
			assert.Contains(t, doc, "border-collapse: collapse")
			assert.True(t, strings.HasPrefix(doc, "<html "))
			assert.True(t, strings.HasSuffix(doc, "</html>\n"))

			start := strings.Index(doc, "<body>\n")
			end := strings.LastIndex(doc, "\n</body>")
			require.True(t, start >= 0 && end > start)
			assert.Equal(t, tt.fragment, doc[start+len("<body>\n"):end])
			if tt.fragment != "" {
				assert.Equal(t, 1, strings.Count(doc, tt.fragment))
			}
		})
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	a := Assemble("<p>Hi <math><mi>x</mi></math></p>", "Exported Document")
	b := Assemble("<p>Hi <math><mi>x</mi></math></p>", "Exported Document")
	assert.Equal(t, a, b)
}

func TestRenderPreview(t *testing.T) {
	out, err := RenderPreview("## Title\n\nLet $a_{1} * b_{2}$ hold.\n\n$$\n\\nabla_{x} f = 0\n$$\n\n- item **bold**\n")
	require.NoError(t, err)

	assert.Contains(t, out, `<h2 id="title">Title</h2>`)
	assert.Contains(t, out, `<span class="math-inline">\(a_{1} * b_{2}\)</span>`)
	assert.Contains(t, out, `<div class="math-display">\[\nabla_{x} f = 0\]</div>`)
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "MWMATH")
	assert.NotContains(t, out, "<em>")
}

func TestRenderPreviewEscapesTeX(t *testing.T) {
	out, err := RenderPreview("Compare $a < b$.")
	require.NoError(t, err)
	assert.Contains(t, out, `\(a &lt; b\)`)
}

func TestRenderPreviewLeavesCodeAndEscapedDollars(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		contains []string
		math     int
	}{
		{
			name:     "inline code",
			in:       "Use `$x$` literally, but $y$ is math.",
			contains: []string{"<code>$x$</code>", `\(y\)`},
			math:     1,
		},
		{
			name:     "fenced code",
			in:       "```tex\n$a$ and $$b$$\n```\n\nAfter $c$.\n",
			contains: []string{"$a$ and $$b$$", `\(c\)`},
			math:     1,
		},
		{
			name:     "escaped dollars",
			in:       `Costs \$5 or \$6 today.`,
			contains: []string{"Costs $5 or $6 today."},
			math:     0,
		},
		{
			name:     "escaped dollar inside math",
			in:       `Price $p = \$3$.`,
			contains: []string{`\(p = \$3\)`},
			math:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := RenderPreview(tt.in)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			assert.Equal(t, tt.math, strings.Count(out, `class="math-inline"`)+strings.Count(out, `class="math-display"`))
			assert.NotContains(t, out, "MWMATH")
			assert.NotContains(t, out, "MWDOLLAR")
		})
	}
}

func TestImportHTML(t *testing.T) {
	out, err := ImportHTML("<h1>Title</h1><p>Some <strong>bold</strong> text</p>")
	require.NoError(t, err)
	assert.Contains(t, out, "# Title")
	assert.Contains(t, out, "**bold**")
}
