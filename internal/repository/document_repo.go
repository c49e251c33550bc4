package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ufro-labs/norma-qa/internal/database"
	"github.com/ufro-labs/norma-qa/internal/models"
)

// docRepository implements DocumentRepository on gorm.
type docRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a repository on the global database
// connection.
func NewDocumentRepository() DocumentRepository {
	return &docRepository{db: database.DB}
}

// NewDocumentRepositoryWithDB creates a repository on a specific
// connection, used by tests.
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.DB
	}
	return &docRepository{db: db}
}

// Upsert creates or replaces a document record by its DocID. Re-running
// the ingest pipeline over the same catalog must not duplicate rows.
func (r *docRepository) Upsert(doc *models.Document) error {
	if doc.DocID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "filename", "url", "vigencia", "content_type", "metadata", "updated_at",
		}),
	}).Create(doc).Error
}

// GetByID returns the document with the given DocID.
func (r *docRepository) GetByID(docID string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("doc_id = ?", docID).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("document not found: %s: %w", docID, err)
		}
		return nil, err
	}
	return &doc, nil
}

// List returns documents with pagination and optional filters.
func (r *docRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.Model(&models.Document{})

	if filters != nil {
		if status, ok := filters["status"]; ok {
			statusStr := fmt.Sprintf("%v", status)
			if statusStr != "" {
				query = query.Where("status = ?", statusStr)
			}
		}
		if vigencia, ok := filters["vigencia"].(string); ok && vigencia != "" {
			query = query.Where("vigencia = ?", vigencia)
		}
		if title, ok := filters["title"].(string); ok && title != "" {
			query = query.Where("title LIKE ?", "%"+title+"%")
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("doc_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// Delete removes a document record.
func (r *docRepository) Delete(docID string) error {
	return r.db.Where("doc_id = ?", docID).Delete(&models.Document{}).Error
}

// MarkIndexed records a successful indexing pass for a document.
func (r *docRepository) MarkIndexed(docID string, pageCount, chunkCount int) error {
	now := time.Now()
	return r.db.Model(&models.Document{}).
		Where("doc_id = ?", docID).
		Updates(map[string]interface{}{
			"status":      models.DocStatusIndexed,
			"page_count":  pageCount,
			"chunk_count": chunkCount,
			"indexed_at":  &now,
			"error":       "",
			"updated_at":  now,
		}).Error
}

// MarkFailed records an indexing failure for a document.
func (r *docRepository) MarkFailed(docID string, errorMsg string) error {
	return r.db.Model(&models.Document{}).
		Where("doc_id = ?", docID).
		Updates(map[string]interface{}{
			"status":     models.DocStatusFailed,
			"error":      errorMsg,
			"updated_at": time.Now(),
		}).Error
}

// CreateIndexRun starts a new index build record.
func (r *docRepository) CreateIndexRun(run *models.IndexRun) error {
	return r.db.Create(run).Error
}

// FinishIndexRun closes an index build record with its final counts and
// stats blob.
func (r *docRepository) FinishIndexRun(runID uint, docCount, chunkCount int, stats datatypes.JSON, errorMsg string) error {
	now := time.Now()
	return r.db.Model(&models.IndexRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"document_count": docCount,
			"chunk_count":    chunkCount,
			"finished_at":    &now,
			"stats":          stats,
			"error":          errorMsg,
		}).Error
}

// LatestIndexRun returns the most recent index build record.
func (r *docRepository) LatestIndexRun() (*models.IndexRun, error) {
	var run models.IndexRun
	err := r.db.Order("started_at DESC").First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("no index runs recorded")
		}
		return nil, err
	}
	return &run, nil
}
