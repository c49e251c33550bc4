package vectordb

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrIndexNotBuilt is returned by Search before Build or Load has run.
	ErrIndexNotBuilt    = errors.New("vector index not built")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
)

// Segment is one indexed chunk of a regulatory document together with the
// citation metadata the answer layer needs. Segments and their vectors are
// stored row-aligned: the segment at position i owns the vector at row i.
type Segment struct {
	ChunkID  string    // deterministic chunk identifier
	DocID    string    // owning document
	Title    string    // document title, used in citations
	Content  string    // chunk text
	Page     int       // 1-based page number
	URL      string    // source URL, may be empty
	Vigencia string    // validity year of the regulation
	Vector   []float32 // embedding, normalized at build time
}

// SearchResult pairs a matched segment with its cosine similarity score.
type SearchResult struct {
	Segment Segment
	Score   float32
	Rank    int // 0-based position in the result list
}

// Repository is a batch-built vector index over document segments.
// Build replaces the whole index; there is no incremental add.
type Repository interface {
	// Build indexes the given segments, replacing any previous contents.
	Build(segments []Segment) error

	// Search returns the k most similar segments, best first. Ties keep
	// insertion order. Returns ErrIndexNotBuilt before the first Build
	// or Load.
	Search(vector []float32, k int) ([]SearchResult, error)

	// Count returns the number of indexed segments.
	Count() (int, error)

	// Dimension returns the vector dimension, 0 before the first build.
	Dimension() int

	// Save persists the index and its segments.
	Save() error

	// Load restores a previously saved index.
	Load() error

	Close() error
}

// Config selects and parameterizes a repository implementation.
type Config struct {
	Type      string // "flat" or "faiss"
	Path      string // persistence path, empty for in-memory only
	Dimension int    // expected vector dimension, 0 to infer from data
}

// Factory builds a repository from a config.
type Factory func(config Config) (Repository, error)

var repositoryRegistry = map[string]Factory{}

// RegisterRepository registers a repository implementation under a name.
func RegisterRepository(name string, factory Factory) {
	repositoryRegistry[name] = factory
}

// NewRepository creates the repository named by config.Type. An empty type
// defaults to the flat implementation.
func NewRepository(config Config) (Repository, error) {
	name := config.Type
	if name == "" {
		name = "flat"
	}
	factory, ok := repositoryRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown vector index type %q", config.Type)
	}
	return factory(config)
}
