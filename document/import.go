package document

import (
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// ImportHTML converts an HTML page or fragment into Markdown so it can seed
// the editor buffer.
func ImportHTML(src string) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(src)
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	return markdown, nil
}
