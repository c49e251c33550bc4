package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ufro-labs/norma-qa/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.IndexRun{}))
	return db
}

func TestDocumentRepository(t *testing.T) {
	t.Run("UpsertAndGet", func(t *testing.T) {
		repo := NewDocumentRepositoryWithDB(setupTestDB(t))

		doc := &models.Document{
			DocID:    "REG-01",
			Title:    "Reglamento de Régimen de Estudios",
			Filename: "reglamento_estudios.pdf",
			Vigencia: "2024",
		}
		require.NoError(t, repo.Upsert(doc))

		got, err := repo.GetByID("REG-01")
		require.NoError(t, err)
		assert.Equal(t, "Reglamento de Régimen de Estudios", got.Title)
		assert.Equal(t, models.DocStatusPending, got.Status)
	})

	t.Run("UpsertDoesNotDuplicate", func(t *testing.T) {
		repo := NewDocumentRepositoryWithDB(setupTestDB(t))

		require.NoError(t, repo.Upsert(&models.Document{
			DocID: "REG-01", Title: "Título viejo", Filename: "a.pdf",
		}))
		require.NoError(t, repo.Upsert(&models.Document{
			DocID: "REG-01", Title: "Título nuevo", Filename: "a.pdf",
		}))

		docs, total, err := repo.List(0, 10, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, docs, 1)
		assert.Equal(t, "Título nuevo", docs[0].Title)
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo := NewDocumentRepositoryWithDB(setupTestDB(t))
		_, err := repo.GetByID("NO-EXISTE")
		assert.Error(t, err)
	})

	t.Run("EmptyIDRejected", func(t *testing.T) {
		repo := NewDocumentRepositoryWithDB(setupTestDB(t))
		assert.Error(t, repo.Upsert(&models.Document{Title: "sin id"}))
	})

	t.Run("ListWithFilters", func(t *testing.T) {
		repo := NewDocumentRepositoryWithDB(setupTestDB(t))

		require.NoError(t, repo.Upsert(&models.Document{DocID: "REG-01", Title: "Reglamento", Filename: "a.pdf", Vigencia: "2024"}))
		require.NoError(t, repo.Upsert(&models.Document{DocID: "BEN-02", Title: "Beneficios", Filename: "b.md", Vigencia: "2023"}))
		require.NoError(t, repo.MarkIndexed("REG-01", 10, 42))

		docs, total, err := repo.List(0, 10, map[string]interface{}{"status": models.DocStatusIndexed})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, docs, 1)
		assert.Equal(t, "REG-01", docs[0].DocID)

		docs, total, err = repo.List(0, 10, map[string]interface{}{"vigencia": "2023"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Equal(t, "BEN-02", docs[0].DocID)
	})

	t.Run("MarkIndexed", func(t *testing.T) {
		repo := NewDocumentRepositoryWithDB(setupTestDB(t))

		require.NoError(t, repo.Upsert(&models.Document{DocID: "REG-01", Title: "Reglamento", Filename: "a.pdf"}))
		require.NoError(t, repo.MarkIndexed("REG-01", 12, 57))

		got, err := repo.GetByID("REG-01")
		require.NoError(t, err)
		assert.Equal(t, models.DocStatusIndexed, got.Status)
		assert.Equal(t, 12, got.PageCount)
		assert.Equal(t, 57, got.ChunkCount)
		assert.NotNil(t, got.IndexedAt)
	})

	t.Run("MarkFailed", func(t *testing.T) {
		repo := NewDocumentRepositoryWithDB(setupTestDB(t))

		require.NoError(t, repo.Upsert(&models.Document{DocID: "REG-01", Title: "Reglamento", Filename: "a.pdf"}))
		require.NoError(t, repo.MarkFailed("REG-01", "no text content found in PDF"))

		got, err := repo.GetByID("REG-01")
		require.NoError(t, err)
		assert.Equal(t, models.DocStatusFailed, got.Status)
		assert.Contains(t, got.Error, "no text content")
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewDocumentRepositoryWithDB(setupTestDB(t))

		require.NoError(t, repo.Upsert(&models.Document{DocID: "REG-01", Title: "Reglamento", Filename: "a.pdf"}))
		require.NoError(t, repo.Delete("REG-01"))

		_, err := repo.GetByID("REG-01")
		assert.Error(t, err)
	})
}

func TestIndexRuns(t *testing.T) {
	t.Run("CreateAndFinish", func(t *testing.T) {
		repo := NewDocumentRepositoryWithDB(setupTestDB(t))

		run := &models.IndexRun{IndexType: "flat", EmbedModel: "text-embedding-3-small", Dimension: 1536}
		require.NoError(t, repo.CreateIndexRun(run))
		require.NotZero(t, run.ID)

		stats := datatypes.JSON(`{"chunks_per_doc":{"REG-01":80,"BEN-02":40}}`)
		require.NoError(t, repo.FinishIndexRun(run.ID, 3, 120, stats, ""))

		latest, err := repo.LatestIndexRun()
		require.NoError(t, err)
		assert.Equal(t, run.ID, latest.ID)
		assert.Equal(t, 3, latest.DocumentCount)
		assert.Equal(t, 120, latest.ChunkCount)
		assert.NotNil(t, latest.FinishedAt)
		assert.JSONEq(t, string(stats), string(latest.Stats))
	})

	t.Run("LatestWithNoRuns", func(t *testing.T) {
		repo := NewDocumentRepositoryWithDB(setupTestDB(t))
		_, err := repo.LatestIndexRun()
		assert.Error(t, err)
	})
}
