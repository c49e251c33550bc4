package document

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// PlainTextParser treats each blank-line separated section of a .txt file
// as one page, so plain-text regulations get page-level citations too.
type PlainTextParser struct{}

// NewPlainTextParser creates a plain text parser.
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse reads a text file and returns its sections as pages.
func (p *PlainTextParser) Parse(filePath string) ([]Page, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open text file: %v", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader parses text content from a reader.
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) ([]Page, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read text content: %v", err)
	}

	return pagesFromSections(string(content)), nil
}

// pagesFromSections splits text on blank lines and numbers the non-empty
// sections sequentially from 1.
func pagesFromSections(content string) []Page {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var pages []Page
	number := 0
	for _, section := range strings.Split(content, "\n\n") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		number++
		pages = append(pages, Page{Number: number, Text: section})
	}
	return pages
}
