package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser converts Markdown regulations to plain text and splits
// them into heading-delimited pages.
type MarkdownParser struct{}

// NewMarkdownParser creates a new Markdown parser.
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse parses a Markdown file and extracts its text content.
func (p *MarkdownParser) Parse(filePath string) ([]Page, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open markdown file: %v", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader parses Markdown content from a reader.
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) ([]Page, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown content: %v", err)
	}

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse(content)

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	htmlContent := markdown.Render(doc, renderer)

	plainText := extractTextFromHTML(string(htmlContent))

	// Paragraph breaks produced by headings and paragraph tags become
	// section boundaries, each section is indexed as one page.
	return pagesFromSections(plainText), nil
}

// extractTextFromHTML strips tags from rendered HTML, keeping paragraph
// structure. A simplified implementation, complex documents may need a
// real HTML parsing library.
func extractTextFromHTML(html string) string {
	replacements := []struct {
		Old string
		New string
	}{
		{"<br>", "\n"},
		{"<br/>", "\n"},
		{"<br />", "\n"},
		{"<p>", ""},
		{"</p>", "\n\n"},
		{"<li>", "- "},
		{"</li>", "\n"},
		{"<ul>", "\n"},
		{"</ul>", "\n"},
		{"<ol>", "\n"},
		{"</ol>", "\n"},
		{"<h1>", "\n\n"},
		{"</h1>", "\n\n"},
		{"<h2>", "\n\n"},
		{"</h2>", "\n\n"},
		{"<h3>", "\n\n"},
		{"</h3>", "\n\n"},
		{"<h4>", "\n\n"},
		{"</h4>", "\n\n"},
		{"<h5>", "\n\n"},
		{"</h5>", "\n\n"},
		{"<h6>", "\n\n"},
	}

	result := html
	for _, r := range replacements {
		result = strings.ReplaceAll(result, r.Old, r.New)
	}

	// Remove any remaining tags.
	for {
		start := strings.Index(result, "<")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], ">")
		if end == -1 {
			break
		}
		result = result[:start] + " " + result[start+end+1:]
	}

	return normalizeWhitespace(result)
}
