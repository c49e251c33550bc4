package document

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// ManifestEntry describes one regulatory document in the corpus catalog.
type ManifestEntry struct {
	DocID    string
	Title    string
	Filename string
	URL      string
	Vigencia string
}

// manifestColumns is the required CSV header, in order.
var manifestColumns = []string{"doc_id", "title", "filename", "url", "vigencia"}

// LoadManifest reads the corpus catalog CSV from a file.
func LoadManifest(filePath string) ([]ManifestEntry, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %v", err)
	}
	defer file.Close()

	return ReadManifest(file)
}

// ReadManifest parses catalog entries from a reader. The header row is
// validated, rows with an empty doc_id or filename are rejected, and
// duplicate doc_ids are an error since they would collide in chunk ids.
func ReadManifest(r io.Reader) ([]ManifestEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %v", err)
	}
	if err := validateManifestHeader(header); err != nil {
		return nil, err
	}

	var entries []ManifestEntry
	seen := make(map[string]bool)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest row: %v", err)
		}
		line++

		entry := ManifestEntry{
			DocID:    strings.TrimSpace(record[0]),
			Title:    strings.TrimSpace(record[1]),
			Filename: strings.TrimSpace(record[2]),
			URL:      strings.TrimSpace(record[3]),
			Vigencia: strings.TrimSpace(record[4]),
		}
		if entry.DocID == "" || entry.Filename == "" {
			return nil, fmt.Errorf("manifest row %d: doc_id and filename are required", line)
		}
		if seen[entry.DocID] {
			return nil, fmt.Errorf("manifest row %d: duplicate doc_id %q", line, entry.DocID)
		}
		seen[entry.DocID] = true
		entries = append(entries, entry)
	}

	return entries, nil
}

func validateManifestHeader(header []string) error {
	if len(header) != len(manifestColumns) {
		return fmt.Errorf("manifest header has %d columns, want %d", len(header), len(manifestColumns))
	}
	for i, want := range manifestColumns {
		got := strings.TrimSpace(strings.ToLower(header[i]))
		// Tolerate a UTF-8 BOM on the first column.
		got = strings.TrimPrefix(got, "\uFEFF")
		if got != want {
			return fmt.Errorf("manifest column %d is %q, want %q", i+1, header[i], want)
		}
	}
	return nil
}
