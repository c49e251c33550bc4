package vectordb

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FlatRepository is a pure-Go exhaustive-scan index. It keeps all segment
// vectors in memory and scores every row on each search, which is fine for
// a corpus of a few thousand chunks and avoids the faiss C dependency.
type FlatRepository struct {
	mu        sync.RWMutex
	segments  []Segment
	dimension int
	path      string
	built     bool
}

// flatSnapshot is the gob-serialized form of the index.
type flatSnapshot struct {
	Segments  []Segment
	Dimension int
}

// NewFlatRepository creates a flat scan repository.
func NewFlatRepository(config Config) (Repository, error) {
	if config.Dimension < 0 {
		return nil, fmt.Errorf("vector dimension must be non-negative")
	}
	return &FlatRepository{
		dimension: config.Dimension,
		path:      config.Path,
	}, nil
}

// Build replaces the index contents with the given segments. All vectors
// are normalized so search can use plain inner products.
func (r *FlatRepository) Build(segments []Segment) error {
	dim := r.dimension
	indexed := make([]Segment, len(segments))
	for i := range segments {
		seg := segments[i]
		if err := ValidateVector(seg.Vector, dim); err != nil {
			return fmt.Errorf("invalid vector for segment %s: %w", seg.ChunkID, err)
		}
		if dim == 0 {
			dim = len(seg.Vector)
		}
		seg.Vector = normalizeVector(seg.Vector)
		indexed[i] = seg
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = indexed
	r.dimension = dim
	r.built = true
	return nil
}

// Search scores every segment against the query and returns the top k.
func (r *FlatRepository) Search(vector []float32, k int) ([]SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.built {
		return nil, ErrIndexNotBuilt
	}
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}

	query := normalizeVector(vector)
	results := make([]SearchResult, 0, len(r.segments))
	for _, seg := range r.segments {
		results = append(results, SearchResult{
			Segment: seg,
			Score:   innerProduct(query, seg.Vector),
		})
	}
	return topKByScore(results, k), nil
}

// Count returns the number of indexed segments.
func (r *FlatRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.segments), nil
}

// Dimension returns the vector dimension.
func (r *FlatRepository) Dimension() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dimension
}

// Save writes the index to the configured path with gob encoding.
func (r *FlatRepository) Save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.path == "" {
		return fmt.Errorf("no persistence path configured")
	}
	if !r.built {
		return ErrIndexNotBuilt
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %v", err)
	}

	file, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %v", err)
	}
	defer file.Close()

	snapshot := flatSnapshot{Segments: r.segments, Dimension: r.dimension}
	if err := gob.NewEncoder(file).Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode index: %v", err)
	}
	return nil
}

// Load restores the index from the configured path.
func (r *FlatRepository) Load() error {
	if r.path == "" {
		return fmt.Errorf("no persistence path configured")
	}

	file, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %v", err)
	}
	defer file.Close()

	var snapshot flatSnapshot
	if err := gob.NewDecoder(file).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode index: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = snapshot.Segments
	r.dimension = snapshot.Dimension
	r.built = true
	return nil
}

// Close is a no-op for the flat implementation.
func (r *FlatRepository) Close() error {
	return nil
}

func init() {
	RegisterRepository("flat", NewFlatRepository)
}
