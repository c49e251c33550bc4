package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser extracts per-page text from PDF documents.
type PDFParser struct{}

// NewPDFParser creates a new PDF parser.
func NewPDFParser() Parser {
	return &PDFParser{}
}

// rePageNumber matches the page number in pdfcpu extracted content file
// names, e.g. "reglamento_Content_page_3.txt".
var rePageNumber = regexp.MustCompile(`(\d+)\.txt$`)

// Parse extracts the text of each page, keeping page numbers so chunks
// can carry a citable location.
func (p *PDFParser) Parse(filePath string) ([]Page, error) {
	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()

	// Extracts one .txt per page into tmpDir.
	if err := api.ExtractContentFile(filePath, tmpDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract text from PDF: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted text dir: %v", err)
	}

	var pages []Page
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		pages = append(pages, Page{
			Number: pageNumberFromName(entry.Name(), len(pages)+1),
			Text:   text,
		})
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Number < pages[j].Number
	})

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text content found in PDF")
	}
	return pages, nil
}

// ParseReader spools the PDF to a temp file first, pdfcpu extraction
// works on paths.
func (p *PDFParser) ParseReader(r io.Reader, filename string) ([]Page, error) {
	tmpFile, err := os.CreateTemp("", "pdf_parse_*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to spool PDF content: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %v", err)
	}

	return p.Parse(tmpFile.Name())
}

func pageNumberFromName(name string, fallback int) int {
	m := rePageNumber.FindStringSubmatch(name)
	if m == nil {
		return fallback
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
