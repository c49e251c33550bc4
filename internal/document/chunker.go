package document

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chunk is one retrievable span of page text. The ChunkID is deterministic
// (doc id + page + sequence index) so re-chunking identical input reproduces
// the same ids.
type Chunk struct {
	ChunkID string // "<docID>_p<page>_c<index>"
	Content string
	Page    int
	Index   int // sequence index within the page
}

// ChunkerConfig controls how page text is split into chunks.
// Sizes are rune counts, not byte counts, so accented Spanish text is
// measured in characters.
type ChunkerConfig struct {
	ChunkSize    int // target chunk length
	ChunkOverlap int // characters carried into the next chunk
	MinChunkLen  int // chunks shorter than this are dropped as noise
}

// DefaultChunkerConfig returns the chunker defaults used for the corpus.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:    900,
		ChunkOverlap: 120,
		MinChunkLen:  50,
	}
}

// Chunker splits cleaned page text into overlapping chunks, preferring to
// cut at sentence or clause boundaries.
type Chunker struct {
	config ChunkerConfig
}

// NewChunker validates the configuration and creates a chunker.
// An overlap equal to or larger than the chunk size is a configuration error.
func NewChunker(config ChunkerConfig) (*Chunker, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be non-negative and smaller than chunk size %d",
			config.ChunkOverlap, config.ChunkSize)
	}
	if config.MinChunkLen <= 0 {
		config.MinChunkLen = DefaultChunkerConfig().MinChunkLen
	}
	return &Chunker{config: config}, nil
}

// boundaryMarkers are tried in priority order when looking for a cut point:
// sentence end first, then weaker clause separators, finally any space.
var boundaryMarkers = []string{". ", "? ", "! ", ": ", "; ", ", ", " "}

// ChunkPage splits one page of text into chunks. Pure function of its
// inputs and the chunker configuration.
func (c *Chunker) ChunkPage(text string, docID string, page int) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var pieces []string
	runes := []rune(text)
	size := c.config.ChunkSize

	if len(runes) <= size {
		// The minimum-length filter applies to whole-page chunks too.
		if len(runes) >= c.config.MinChunkLen {
			pieces = append(pieces, text)
		}
	} else {
		start := 0
		for start < len(runes) {
			end := start + size

			// Snap the cut to the best natural boundary inside the window,
			// as long as it is past 60% of the window to avoid tiny chunks.
			if end < len(runes) {
				if cut := boundaryCut(runes[start:end], size); cut > 0 {
					end = start + cut
				}
			}

			sliceEnd := end
			if sliceEnd > len(runes) {
				sliceEnd = len(runes)
			}
			piece := strings.TrimSpace(string(runes[start:sliceEnd]))
			if utf8.RuneCountInString(piece) >= c.config.MinChunkLen {
				pieces = append(pieces, piece)
			}

			next := end - c.config.ChunkOverlap
			if next <= start {
				// Large overlaps could make a boundary-snapped window regress.
				next = end
			}
			start = next
			if start >= len(runes) {
				break
			}
		}
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, Chunk{
			ChunkID: fmt.Sprintf("%s_p%d_c%d", docID, page, i),
			Content: piece,
			Page:    page,
			Index:   i,
		})
	}
	return chunks
}

// boundaryCut returns the rune offset to cut the window at, or 0 when no
// boundary qualifies. Marker kinds are tried in priority order; the first
// kind whose last occurrence lies past 60% of the target size wins, and the
// cut lands just after the marker's leading rune (keeping the punctuation).
func boundaryCut(window []rune, size int) int {
	threshold := float64(size) * 0.6
	for _, marker := range boundaryMarkers {
		idx := lastIndexRunes(window, marker)
		if idx >= 0 && float64(idx) > threshold {
			return idx + 1
		}
	}
	return 0
}

// lastIndexRunes finds the last occurrence of marker in window, in rune
// offsets.
func lastIndexRunes(window []rune, marker string) int {
	m := []rune(marker)
	for i := len(window) - len(m); i >= 0; i-- {
		match := true
		for j := range m {
			if window[i+j] != m[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
