// Package document builds the Word-compatible export payload and the on-screen
// preview for Markdown with embedded LaTeX.
package document

import (
	"html"
	"strings"
)

// Payload is a complete serialized document, ready to be written as bytes.
type Payload string

// DefaultTitle is used when Assemble receives an empty title.
const DefaultTitle = "Document"

const wordStyles = `body { font-family: 'Times New Roman', serif; line-height: 1.5; font-size: 12pt; }
h1, h2, h3, h4, h5, h6 { font-family: 'Arial', sans-serif; }
.math-display { text-align: center; margin: 1em 0; }
table { border-collapse: collapse; width: 100%; margin-bottom: 1em; }
td, th { border: 1px solid #000; padding: 0.5em; }`

// Assemble wraps an HTML body fragment in the Office namespace skeleton so Word
// opens it as a native document and keeps MathML editable. The fragment is
// inserted unescaped.
func Assemble(fragment, title string) Payload {
	if title == "" {
		title = DefaultTitle
	}

	var b strings.Builder
	b.Grow(len(fragment) + 1024)
	b.WriteString("<html xmlns:o='urn:schemas-microsoft-com:office:office' ")
	b.WriteString("xmlns:w='urn:schemas-microsoft-com:office:word' ")
	b.WriteString("xmlns='http://www.w3.org/TR/REC-html40'>\n")
	b.WriteString("<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title>\n")
	b.WriteString("<style>\n")
	b.WriteString(wordStyles)
	b.WriteString("\n</style>\n")
	b.WriteString("</head>\n")
	b.WriteString("<body>\n")
	b.WriteString(fragment)
	b.WriteString("\n</body>\n")
	b.WriteString("</html>\n")
	return Payload(b.String())
}
