//go:build cgo

package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissRepository backs the index with a faiss IndexFlatIP. Vectors are
// normalized before insertion so inner product equals cosine similarity.
// Segment metadata lives in a JSON sidecar next to the index file,
// row-aligned with the faiss vectors.
type FaissRepository struct {
	mu        sync.RWMutex
	index     faiss.Index
	segments  []Segment // row i of the index belongs to segments[i]
	dimension int
	indexPath string
	metaPath  string
	built     bool
}

// faissSidecar is the JSON sidecar format. Vectors are not duplicated
// here, the faiss index file owns them.
type faissSidecar struct {
	Segments  []sidecarSegment `json:"segments"`
	Dimension int              `json:"dimension"`
}

type sidecarSegment struct {
	ChunkID  string `json:"chunk_id"`
	DocID    string `json:"doc_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Page     int    `json:"page"`
	URL      string `json:"url,omitempty"`
	Vigencia string `json:"vigencia,omitempty"`
}

// NewFaissRepository creates a faiss-backed repository.
func NewFaissRepository(config Config) (Repository, error) {
	if config.Dimension < 0 {
		return nil, fmt.Errorf("vector dimension must be non-negative")
	}

	metaPath := ""
	if config.Path != "" {
		metaPath = config.Path + ".meta.json"
	}

	return &FaissRepository{
		dimension: config.Dimension,
		indexPath: config.Path,
		metaPath:  metaPath,
	}, nil
}

// Build replaces the index with the given segments.
func (r *FaissRepository) Build(segments []Segment) error {
	dim := r.dimension
	rows := make([]Segment, len(segments))
	for i := range segments {
		seg := segments[i]
		if err := ValidateVector(seg.Vector, dim); err != nil {
			return fmt.Errorf("invalid vector for segment %s: %w", seg.ChunkID, err)
		}
		if dim == 0 {
			dim = len(seg.Vector)
		}
		seg.Vector = normalizeVector(seg.Vector)
		rows[i] = seg
	}
	if dim == 0 {
		return fmt.Errorf("cannot build an index from zero segments without a configured dimension")
	}

	index, err := faiss.NewIndexFlat(dim, faiss.MetricInnerProduct)
	if err != nil {
		return fmt.Errorf("failed to create faiss index: %v", err)
	}

	// Flatten into one contiguous buffer for a single Add call.
	flat := make([]float32, 0, len(rows)*dim)
	for _, seg := range rows {
		flat = append(flat, seg.Vector...)
	}
	if len(rows) > 0 {
		if err := index.Add(flat); err != nil {
			return fmt.Errorf("failed to add vectors to faiss index: %v", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		r.index.Delete()
	}
	r.index = index
	r.segments = rows
	r.dimension = dim
	r.built = true
	return nil
}

// Search queries the faiss index and maps row ids back to segments.
func (r *FaissRepository) Search(vector []float32, k int) ([]SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.built {
		return nil, ErrIndexNotBuilt
	}
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}
	if k <= 0 || len(r.segments) == 0 {
		return []SearchResult{}, nil
	}

	limit := k
	if limit > len(r.segments) {
		limit = len(r.segments)
	}

	query := normalizeVector(vector)
	distances, indices, err := r.index.Search(query, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search faiss index: %v", err)
	}

	results := make([]SearchResult, 0, limit)
	for i := 0; i < len(indices); i++ {
		idx := indices[i]
		if idx < 0 || int(idx) >= len(r.segments) {
			continue
		}
		results = append(results, SearchResult{
			Segment: r.segments[idx],
			Score:   distances[i],
			Rank:    len(results),
		})
	}
	return results, nil
}

// Count returns the number of indexed segments.
func (r *FaissRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.segments), nil
}

// Dimension returns the vector dimension.
func (r *FaissRepository) Dimension() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dimension
}

// Save writes the faiss index and the metadata sidecar.
func (r *FaissRepository) Save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.indexPath == "" {
		return fmt.Errorf("no persistence path configured")
	}
	if !r.built {
		return ErrIndexNotBuilt
	}
	if err := os.MkdirAll(filepath.Dir(r.indexPath), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %v", err)
	}
	if err := faiss.WriteIndex(r.index, r.indexPath); err != nil {
		return fmt.Errorf("failed to write faiss index: %v", err)
	}

	sidecar := faissSidecar{Dimension: r.dimension}
	for _, seg := range r.segments {
		sidecar.Segments = append(sidecar.Segments, sidecarSegment{
			ChunkID:  seg.ChunkID,
			DocID:    seg.DocID,
			Title:    seg.Title,
			Content:  seg.Content,
			Page:     seg.Page,
			URL:      seg.URL,
			Vigencia: seg.Vigencia,
		})
	}
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index metadata: %v", err)
	}
	if err := os.WriteFile(r.metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write index metadata: %v", err)
	}
	return nil
}

// Load restores the faiss index and its sidecar. Both files must exist
// and describe the same number of rows.
func (r *FaissRepository) Load() error {
	if r.indexPath == "" {
		return fmt.Errorf("no persistence path configured")
	}

	index, err := faiss.ReadIndex(r.indexPath, 0)
	if err != nil {
		return fmt.Errorf("failed to read faiss index: %v", err)
	}

	data, err := os.ReadFile(r.metaPath)
	if err != nil {
		index.Delete()
		return fmt.Errorf("failed to read index metadata: %v", err)
	}
	var sidecar faissSidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		index.Delete()
		return fmt.Errorf("failed to unmarshal index metadata: %v", err)
	}
	if int(index.Ntotal()) != len(sidecar.Segments) {
		index.Delete()
		return fmt.Errorf("index has %d rows but metadata describes %d segments",
			index.Ntotal(), len(sidecar.Segments))
	}

	segments := make([]Segment, len(sidecar.Segments))
	for i, s := range sidecar.Segments {
		segments[i] = Segment{
			ChunkID:  s.ChunkID,
			DocID:    s.DocID,
			Title:    s.Title,
			Content:  s.Content,
			Page:     s.Page,
			URL:      s.URL,
			Vigencia: s.Vigencia,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		r.index.Delete()
	}
	r.index = index
	r.segments = segments
	r.dimension = sidecar.Dimension
	r.built = true
	return nil
}

// Close releases the native faiss index.
func (r *FaissRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		r.index.Delete()
		r.index = nil
	}
	return nil
}

func init() {
	RegisterRepository("faiss", NewFaissRepository)
}
