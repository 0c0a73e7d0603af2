package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fyerfyer/multimodal-rag/internal/database"
	"github.com/fyerfyer/multimodal-rag/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := database.DefaultConfig()
	cfg.DSN = filepath.Join(t.TempDir(), "registry.db")

	db, err := database.Open(cfg, nil)
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func newFile(id, name, checksum string) *models.IngestedFile {
	return &models.IngestedFile{
		ID:         id,
		FileName:   name,
		Source:     name,
		Checksum:   checksum,
		Collection: "multi_rag",
		FileSize:   128,
	}
}

func TestFileRepository_CreateAndGet(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))

	file := newFile("f1", "report.pdf", "abc")
	require.NoError(t, repo.Create(file))

	got, err := repo.GetByID("f1")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got.FileName)
	assert.Equal(t, models.FileStatusUploaded, got.Status)
	assert.False(t, got.UploadedAt.IsZero())

	_, err = repo.GetByID("missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	assert.Error(t, repo.Create(&models.IngestedFile{}))
}

func TestFileRepository_StatusTransitions(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	require.NoError(t, repo.Create(newFile("f1", "notes.txt", "abc")))

	// uploaded不能直接变为indexed
	err := repo.UpdateStatus("f1", models.FileStatusIndexed, "")
	assert.ErrorIs(t, err, models.ErrInvalidDocumentStatus)

	require.NoError(t, repo.UpdateStatus("f1", models.FileStatusProcessing, ""))
	require.NoError(t, repo.MarkIndexed("f1", 2, 7))

	got, err := repo.GetByID("f1")
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusIndexed, got.Status)
	assert.Equal(t, 2, got.PageCount)
	assert.Equal(t, 7, got.ChunkCount)
	require.NotNil(t, got.IndexedAt)

	err = repo.UpdateStatus("f1", models.FileStatus("archived"), "")
	assert.ErrorIs(t, err, models.ErrInvalidDocumentStatus)

	err = repo.UpdateStatus("missing", models.FileStatusProcessing, "")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestFileRepository_FailedKeepsError(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	require.NoError(t, repo.Create(newFile("f1", "scan.png", "abc")))

	require.NoError(t, repo.UpdateStatus("f1", models.FileStatusProcessing, ""))
	require.NoError(t, repo.UpdateStatus("f1", models.FileStatusFailed, "parse error: corrupted"))

	got, err := repo.GetByID("f1")
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusFailed, got.Status)
	assert.Equal(t, "parse error: corrupted", got.Error)
}

func TestFileRepository_FindIndexed(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))

	require.NoError(t, repo.Create(newFile("f1", "report.pdf", "abc")))
	_, err := repo.FindIndexed("multi_rag", "report.pdf", "abc")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	require.NoError(t, repo.UpdateStatus("f1", models.FileStatusProcessing, ""))
	require.NoError(t, repo.MarkIndexed("f1", 1, 3))

	found, err := repo.FindIndexed("multi_rag", "report.pdf", "abc")
	require.NoError(t, err)
	assert.Equal(t, "f1", found.ID)

	// 内容不同或集合不同都不算重复
	_, err = repo.FindIndexed("multi_rag", "report.pdf", "def")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
	_, err = repo.FindIndexed("other", "report.pdf", "abc")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestFileRepository_MarkRemoved(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))

	for _, id := range []string{"f1", "f2", "f3"} {
		require.NoError(t, repo.Create(newFile(id, id+".pdf", id)))
		require.NoError(t, repo.UpdateStatus(id, models.FileStatusProcessing, ""))
		require.NoError(t, repo.MarkIndexed(id, 1, 2))
	}
	other := newFile("f4", "f4.pdf", "f4")
	other.Collection = "other"
	require.NoError(t, repo.Create(other))
	require.NoError(t, repo.UpdateStatus("f4", models.FileStatusProcessing, ""))
	require.NoError(t, repo.MarkIndexed("f4", 1, 2))

	removed, err := repo.MarkRemoved("multi_rag", []string{"f2"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	for id, want := range map[string]models.FileStatus{
		"f1": models.FileStatusRemoved,
		"f2": models.FileStatusIndexed,
		"f3": models.FileStatusRemoved,
		"f4": models.FileStatusIndexed,
	} {
		file, err := repo.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, want, file.Status, id)
	}

	// 已移出的文件不再算作重复
	_, err = repo.FindIndexed("multi_rag", "f1.pdf", "f1")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
	require.NoError(t, repo.UpdateStatus("f1", models.FileStatusProcessing, ""))
}

func TestFileRepository_List(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a.txt", "b.pdf", "c.md"} {
		f := newFile(name, name, "sum-"+name)
		f.UploadedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(f))
	}
	require.NoError(t, repo.UpdateStatus("b.pdf", models.FileStatusSkipped, ""))

	files, total, err := repo.List(0, 10, FileFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, files, 3)
	assert.Equal(t, "c.md", files[0].ID)

	files, total, err = repo.List(0, 1, FileFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, files, 1)

	files, total, err = repo.List(0, 10, FileFilter{Status: models.FileStatusSkipped})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "b.pdf", files[0].ID)

	_, total, err = repo.List(0, 10, FileFilter{FileName: ".md"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestFileRepository_AttachTaskAndDelete(t *testing.T) {
	repo := NewFileRepository(setupTestDB(t))
	require.NoError(t, repo.Create(newFile("f1", "a.txt", "1")))
	require.NoError(t, repo.Create(newFile("f2", "b.txt", "2")))

	require.NoError(t, repo.AttachTask([]string{"f1", "f2"}, "task-1"))
	got, err := repo.GetByID("f2")
	require.NoError(t, err)
	assert.Equal(t, "task-1", got.TaskID)

	require.NoError(t, repo.Delete("f1"))
	_, err = repo.GetByID("f1")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}
