package repository

import (
	"gorm.io/datatypes"

	"github.com/ufro-labs/norma-qa/internal/models"
)

// DocumentRepository stores catalog document metadata and index run
// records.
type DocumentRepository interface {
	// Upsert creates or replaces a document record by its DocID.
	Upsert(doc *models.Document) error

	// GetByID returns the document with the given DocID.
	GetByID(docID string) (*models.Document, error)

	// List returns documents with pagination and optional filters
	// (status, vigencia, title substring).
	List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error)

	// Delete removes a document record.
	Delete(docID string) error

	// MarkIndexed records a successful indexing pass for a document.
	MarkIndexed(docID string, pageCount, chunkCount int) error

	// MarkFailed records an indexing failure for a document.
	MarkFailed(docID string, errorMsg string) error

	// CreateIndexRun starts a new index build record.
	CreateIndexRun(run *models.IndexRun) error

	// FinishIndexRun closes an index build record with its final counts
	// and a JSON stats blob (per-document chunk counts).
	FinishIndexRun(runID uint, docCount, chunkCount int, stats datatypes.JSON, errorMsg string) error

	// LatestIndexRun returns the most recent index build record.
	LatestIndexRun() (*models.IndexRun, error)
}
