package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// Page is the text of one source-document page, already extracted but not
// yet cleaned. Page numbers start at 1.
type Page struct {
	Number int
	Text   string
}

// Parser extracts the ordered page texts of a regulatory document.
// Each format (PDF, plain text, Markdown) has its own implementation.
type Parser interface {
	// Parse reads the file at filePath and returns its pages in order.
	Parse(filePath string) ([]Page, error)

	// ParseReader parses document content from a reader.
	// filename is only used to derive the document type.
	ParseReader(r io.Reader, filename string) ([]Page, error)
}

// ContentType identifies a supported document format.
type ContentType string

const (
	// PDF document type
	PDF ContentType = "pdf"
	// Markdown document type
	Markdown ContentType = "markdown"
	// PlainText document type
	PlainText ContentType = "plaintext"
	// Unknown document type
	Unknown ContentType = "unknown"
)

// ErrUnsupportedFormat is returned when no parser exists for a file extension.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ParserFactory returns the parser matching the file's extension.
func ParserFactory(filePath string) (Parser, error) {
	switch DetectContentType(filePath) {
	case PDF:
		return NewPDFParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// DetectContentType maps a file extension to a content type.
func DetectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}
