package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/ufro-labs/norma-qa/internal/document"
	"github.com/ufro-labs/norma-qa/internal/embedding"
	"github.com/ufro-labs/norma-qa/internal/models"
	"github.com/ufro-labs/norma-qa/internal/repository"
	"github.com/ufro-labs/norma-qa/internal/vectordb"
	"github.com/ufro-labs/norma-qa/pkg/storage"
)

// IngestService builds the vector index from the corpus catalog: it parses
// every manifest document, cleans and chunks the text, embeds the chunks and
// replaces the index contents in one batch.
type IngestService struct {
	store    storage.Storage
	embedder embedding.Client
	vectorDB vectordb.Repository
	docs     repository.DocumentRepository
	chunker  *document.Chunker
	log      *logrus.Logger

	indexType  string
	embedModel string
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithChunker overrides the default chunker.
func WithChunker(c *document.Chunker) IngestOption {
	return func(s *IngestService) {
		if c != nil {
			s.chunker = c
		}
	}
}

// WithIndexInfo labels index run records with the index type and embedding
// model in use.
func WithIndexInfo(indexType, embedModel string) IngestOption {
	return func(s *IngestService) {
		s.indexType = indexType
		s.embedModel = embedModel
	}
}

// NewIngestService wires the indexing pipeline. The document repository is
// optional; without it no catalog records are written.
func NewIngestService(store storage.Storage, embedder embedding.Client, vectorDB vectordb.Repository, docs repository.DocumentRepository, log *logrus.Logger, opts ...IngestOption) (*IngestService, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if vectorDB == nil {
		return nil, fmt.Errorf("vector repository is required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	chunker, err := document.NewChunker(document.DefaultChunkerConfig())
	if err != nil {
		return nil, err
	}

	s := &IngestService{
		store:      store,
		embedder:   embedder,
		vectorDB:   vectorDB,
		docs:       docs,
		chunker:    chunker,
		log:        log,
		embedModel: embedder.Name(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IndexReport summarizes one index build.
type IndexReport struct {
	Documents    int            `json:"documents"`
	Failed       int            `json:"failed"`
	Chunks       int            `json:"chunks"`
	Dimension    int            `json:"dimension"`
	ChunksPerDoc map[string]int `json:"chunks_per_doc"`
}

// BuildIndex rebuilds the whole vector index from the manifest at
// manifestPath. Documents that cannot be read, parsed or embedded are logged,
// marked failed and skipped; the index is built from the rest.
func (s *IngestService) BuildIndex(ctx context.Context, manifestPath string) (*IndexReport, error) {
	entries, err := document.LoadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	run := &models.IndexRun{
		IndexType:  s.indexType,
		EmbedModel: s.embedModel,
		Dimension:  s.embedder.Dimensions(),
	}
	if s.docs != nil {
		if err := s.docs.CreateIndexRun(run); err != nil {
			return nil, fmt.Errorf("create index run: %w", err)
		}
	}

	report := &IndexReport{ChunksPerDoc: make(map[string]int)}
	var segments []vectordb.Segment

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		docSegments, pageCount, err := s.ingestDocument(ctx, entry)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"doc_id":   entry.DocID,
				"filename": entry.Filename,
			}).Warn("skipping document")
			s.markFailed(entry.DocID, err)
			report.Failed++
			continue
		}

		segments = append(segments, docSegments...)
		report.Documents++
		report.Chunks += len(docSegments)
		report.ChunksPerDoc[entry.DocID] = len(docSegments)

		if s.docs != nil {
			if err := s.docs.MarkIndexed(entry.DocID, pageCount, len(docSegments)); err != nil {
				s.log.WithError(err).WithField("doc_id", entry.DocID).Warn("failed to record index status")
			}
		}
	}

	if err := s.vectorDB.Build(segments); err != nil {
		s.finishRun(run.ID, report, err)
		return nil, fmt.Errorf("build index: %w", err)
	}
	if err := s.vectorDB.Save(); err != nil {
		s.finishRun(run.ID, report, err)
		return nil, fmt.Errorf("save index: %w", err)
	}
	report.Dimension = s.vectorDB.Dimension()

	s.finishRun(run.ID, report, nil)
	s.log.WithFields(logrus.Fields{
		"documents": report.Documents,
		"failed":    report.Failed,
		"chunks":    report.Chunks,
		"dimension": report.Dimension,
	}).Info("index build finished")
	return report, nil
}

// ingestDocument parses, cleans, chunks and embeds one catalog document.
func (s *IngestService) ingestDocument(ctx context.Context, entry document.ManifestEntry) ([]vectordb.Segment, int, error) {
	if s.docs != nil {
		metadata, err := json.Marshal(map[string]string{
			"source_url": entry.URL,
			"vigencia":   entry.Vigencia,
			"filename":   entry.Filename,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("encode metadata for %s: %w", entry.DocID, err)
		}
		if err := s.docs.Upsert(&models.Document{
			DocID:       entry.DocID,
			Title:       entry.Title,
			Filename:    entry.Filename,
			URL:         entry.URL,
			Vigencia:    entry.Vigencia,
			ContentType: string(document.DetectContentType(entry.Filename)),
			Metadata:    datatypes.JSON(metadata),
		}); err != nil {
			return nil, 0, fmt.Errorf("catalog document: %w", err)
		}
	}

	parser, err := document.ParserFactory(entry.Filename)
	if err != nil {
		if errors.Is(err, document.ErrUnsupportedFormat) {
			return nil, 0, fmt.Errorf("%w: %s", err, entry.Filename)
		}
		return nil, 0, err
	}

	reader, err := s.store.Open(entry.Filename)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", entry.Filename, err)
	}
	defer reader.Close()

	pages, err := parser.ParseReader(reader, entry.Filename)
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", entry.Filename, err)
	}

	var chunks []document.Chunk
	for _, page := range pages {
		cleaned := document.CleanText(page.Text)
		chunks = append(chunks, s.chunker.ChunkPage(cleaned, entry.DocID, page.Number)...)
	}
	if len(chunks) == 0 {
		return nil, len(pages), fmt.Errorf("no indexable text in %s", entry.Filename)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, len(pages), fmt.Errorf("embed %s: %w", entry.DocID, err)
	}
	if len(vectors) != len(chunks) {
		return nil, len(pages), fmt.Errorf("embedding count mismatch for %s: %d chunks, %d vectors", entry.DocID, len(chunks), len(vectors))
	}

	segments := make([]vectordb.Segment, len(chunks))
	for i, chunk := range chunks {
		segments[i] = vectordb.Segment{
			ChunkID:  chunk.ChunkID,
			DocID:    entry.DocID,
			Title:    entry.Title,
			Content:  chunk.Content,
			Page:     chunk.Page,
			URL:      entry.URL,
			Vigencia: entry.Vigencia,
			Vector:   vectors[i],
		}
	}
	return segments, len(pages), nil
}

func (s *IngestService) markFailed(docID string, cause error) {
	if s.docs == nil {
		return
	}
	if err := s.docs.MarkFailed(docID, cause.Error()); err != nil {
		s.log.WithError(err).WithField("doc_id", docID).Warn("failed to record failure status")
	}
}

func (s *IngestService) finishRun(runID uint, report *IndexReport, cause error) {
	if s.docs == nil || runID == 0 {
		return
	}
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	stats, err := json.Marshal(report)
	if err != nil {
		s.log.WithError(err).Warn("failed to encode index run stats")
		stats = nil
	}
	if err := s.docs.FinishIndexRun(runID, report.Documents, report.Chunks, datatypes.JSON(stats), errMsg); err != nil {
		s.log.WithError(err).Warn("failed to close index run record")
	}
}
