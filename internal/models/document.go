package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus tracks where a catalog document is in the indexing
// pipeline.
type DocumentStatus string

const (
	// DocStatusPending means the document is cataloged but not indexed yet.
	DocStatusPending DocumentStatus = "pending"
	// DocStatusIndexed means the document's chunks are in the vector index.
	DocStatusIndexed DocumentStatus = "indexed"
	// DocStatusFailed means parsing or embedding failed.
	DocStatusFailed DocumentStatus = "failed"
)

// Document is the database record for one regulatory document from the
// corpus catalog.
type Document struct {
	DocID       string         `gorm:"primaryKey"`
	Title       string         `gorm:"not null"`
	Filename    string         `gorm:"not null"`
	URL         string         `gorm:"type:varchar(512)"`
	Vigencia    string         `gorm:"size:20"` // validity year of the regulation
	ContentType string         `gorm:"size:20"`
	PageCount   int            `gorm:"not null;default:0"`
	ChunkCount  int            `gorm:"not null;default:0"`
	Status      DocumentStatus `gorm:"not null;index"`
	Error       string         `gorm:"type:text"`
	IndexedAt   *time.Time     `gorm:"index"`
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null;index"`
	Metadata    datatypes.JSON `gorm:"type:json"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = DocStatusPending
	}
	return nil
}

func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

func (Document) TableName() string {
	return "documents"
}

// IndexRun records one batch index build over the corpus.
type IndexRun struct {
	ID            uint           `gorm:"primaryKey;autoIncrement"`
	IndexType     string         `gorm:"size:20;not null"` // "flat" or "faiss"
	EmbedModel    string         `gorm:"size:64"`
	Dimension     int            `gorm:"not null;default:0"`
	DocumentCount int            `gorm:"not null;default:0"`
	ChunkCount    int            `gorm:"not null;default:0"`
	StartedAt     time.Time      `gorm:"not null"`
	FinishedAt    *time.Time     `gorm:""`
	Error         string         `gorm:"type:text"`
	Stats         datatypes.JSON `gorm:"type:json"` // per-document chunk counts
}

func (r *IndexRun) BeforeCreate(tx *gorm.DB) (err error) {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	return nil
}

func (IndexRun) TableName() string {
	return "index_runs"
}
