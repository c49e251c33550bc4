package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ufro-labs/norma-qa/internal/models"
	"github.com/ufro-labs/norma-qa/internal/repository"
	"github.com/ufro-labs/norma-qa/internal/vectordb"
	"github.com/ufro-labs/norma-qa/pkg/storage"
)

func setupIngestDB(t *testing.T) repository.DocumentRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.IndexRun{}))
	return repository.NewDocumentRepositoryWithDB(db)
}

func writeCorpusFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func writeManifest(t *testing.T, dir string, rows ...string) string {
	t.Helper()
	lines := append([]string{"doc_id,title,filename,url,vigencia"}, rows...)
	path := filepath.Join(dir, "manifest.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func TestBuildIndex(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: filepath.Join(dir, "corpus")})
	require.NoError(t, err)

	writeCorpusFile(t, filepath.Join(dir, "corpus"), "matricula.txt",
		"La matrícula se renueva cada semestre académico según las fechas publicadas.\n\n"+
			"Los aranceles deben pagarse dentro del plazo establecido por la universidad.")
	writeCorpusFile(t, filepath.Join(dir, "corpus"), "titulacion.md",
		"# Titulación\n\nEl proceso de titulación requiere aprobar la actividad de tesis correspondiente.")

	manifestPath := writeManifest(t, dir,
		"REG-MAT,Reglamento de Matrícula,matricula.txt,https://ufro.cl/mat,2024",
		"REG-TIT,Reglamento de Titulación,titulacion.md,,2023",
	)

	index, err := vectordb.NewRepository(vectordb.Config{
		Type: "flat",
		Path: filepath.Join(dir, "index.gob"),
	})
	require.NoError(t, err)

	docs := setupIngestDB(t)
	svc, err := NewIngestService(store, &fakeEmbedder{dim: 3}, index, docs, testLogger(),
		WithIndexInfo("flat", "fake-embedder"))
	require.NoError(t, err)

	report, err := svc.BuildIndex(context.Background(), manifestPath)
	require.NoError(t, err)

	t.Run("ReportCounts", func(t *testing.T) {
		assert.Equal(t, 2, report.Documents)
		assert.Equal(t, 0, report.Failed)
		assert.Equal(t, 3, report.Dimension)
		assert.Greater(t, report.Chunks, 0)
		assert.Len(t, report.ChunksPerDoc, 2)
	})

	t.Run("IndexIsSearchable", func(t *testing.T) {
		count, err := index.Count()
		require.NoError(t, err)
		assert.Equal(t, report.Chunks, count)

		results, err := index.Search([]float32{1, 0, 0}, 8)
		require.NoError(t, err)
		assert.NotEmpty(t, results)
	})

	t.Run("IndexIsPersisted", func(t *testing.T) {
		_, err := os.Stat(filepath.Join(dir, "index.gob"))
		assert.NoError(t, err)
	})

	t.Run("DocumentsMarkedIndexed", func(t *testing.T) {
		doc, err := docs.GetByID("REG-MAT")
		require.NoError(t, err)
		assert.Equal(t, models.DocStatusIndexed, doc.Status)
		assert.Greater(t, doc.ChunkCount, 0)
		assert.Equal(t, "plaintext", doc.ContentType)
		require.NotNil(t, doc.IndexedAt)

		var meta map[string]string
		require.NoError(t, json.Unmarshal(doc.Metadata, &meta))
		assert.Equal(t, "https://ufro.cl/mat", meta["source_url"])
		assert.Equal(t, "2024", meta["vigencia"])
		assert.Equal(t, "matricula.txt", meta["filename"])
	})

	t.Run("IndexRunRecorded", func(t *testing.T) {
		run, err := docs.LatestIndexRun()
		require.NoError(t, err)
		assert.Equal(t, "flat", run.IndexType)
		assert.Equal(t, "fake-embedder", run.EmbedModel)
		assert.Equal(t, 2, run.DocumentCount)
		assert.Equal(t, report.Chunks, run.ChunkCount)
		assert.NotNil(t, run.FinishedAt)
		assert.Empty(t, run.Error)

		var stats IndexReport
		require.NoError(t, json.Unmarshal(run.Stats, &stats))
		assert.Equal(t, report.Chunks, stats.Chunks)
		assert.Equal(t, report.ChunksPerDoc, stats.ChunksPerDoc)
	})
}

func TestBuildIndexSkipsBrokenDocuments(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: filepath.Join(dir, "corpus")})
	require.NoError(t, err)

	writeCorpusFile(t, filepath.Join(dir, "corpus"), "valido.txt",
		"El reglamento de convivencia establece los deberes y derechos de la comunidad universitaria.")
	writeCorpusFile(t, filepath.Join(dir, "corpus"), "imagen.png", "not a document")

	manifestPath := writeManifest(t, dir,
		"REG-OK,Reglamento de Convivencia,valido.txt,,2024",
		"REG-MISSING,Documento Perdido,perdido.txt,,2024",
		"REG-BAD,Formato Raro,imagen.png,,2024",
	)

	index, err := vectordb.NewRepository(vectordb.Config{Type: "flat", Path: filepath.Join(dir, "index.gob")})
	require.NoError(t, err)

	docs := setupIngestDB(t)
	svc, err := NewIngestService(store, &fakeEmbedder{dim: 3}, index, docs, testLogger())
	require.NoError(t, err)

	report, err := svc.BuildIndex(context.Background(), manifestPath)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Documents)
	assert.Equal(t, 2, report.Failed)

	missing, err := docs.GetByID("REG-MISSING")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, missing.Status)
	assert.NotEmpty(t, missing.Error)

	unsupported, err := docs.GetByID("REG-BAD")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, unsupported.Status)
}

func TestBuildIndexWithoutCatalog(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: filepath.Join(dir, "corpus")})
	require.NoError(t, err)

	writeCorpusFile(t, filepath.Join(dir, "corpus"), "doc.txt",
		"Las becas internas se asignan según el reglamento de beneficios estudiantiles vigente.")
	manifestPath := writeManifest(t, dir, "REG-BEN,Reglamento de Beneficios,doc.txt,,2024")

	index, err := vectordb.NewRepository(vectordb.Config{Type: "flat", Path: filepath.Join(dir, "index.gob")})
	require.NoError(t, err)

	svc, err := NewIngestService(store, &fakeEmbedder{dim: 3}, index, nil, testLogger())
	require.NoError(t, err)

	report, err := svc.BuildIndex(context.Background(), manifestPath)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)
}

func TestBuildIndexRejectsMissingManifest(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: filepath.Join(dir, "corpus")})
	require.NoError(t, err)

	index, err := vectordb.NewRepository(vectordb.Config{Type: "flat"})
	require.NoError(t, err)

	svc, err := NewIngestService(store, &fakeEmbedder{dim: 3}, index, nil, testLogger())
	require.NoError(t, err)

	_, err = svc.BuildIndex(context.Background(), filepath.Join(dir, "nope.csv"))
	assert.Error(t, err)
}
