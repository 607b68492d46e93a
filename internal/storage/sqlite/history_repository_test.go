package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleandl/cleandl/internal/storage"
)

func newTestRepository(t *testing.T) *HistoryRepository {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewHistoryRepository(db)
}

func TestSaveAndAll(t *testing.T) {
	repo := newTestRepository(t)

	first := storage.Record{
		ID:         "id-1",
		URL:        "https://example.com/a.bin",
		FilePath:   "/downloads/a.bin",
		Size:       2048,
		MD5:        "aaa",
		SHA1:       "bbb",
		ScanStatus: "safe",
		Status:     "completed",
		FinishedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
	}
	second := storage.Record{
		ID:         "id-2",
		URL:        "https://example.com/b.bin",
		FilePath:   "/downloads/b.bin",
		Status:     "failed",
		FinishedAt: time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(first))
	require.NoError(t, repo.Save(second))

	records, err := repo.All()
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Most recent first
	assert.Equal(t, "id-2", records[0].ID)
	assert.Equal(t, "id-1", records[1].ID)
	assert.Equal(t, first.URL, records[1].URL)
	assert.Equal(t, first.Size, records[1].Size)
	assert.Equal(t, first.ScanStatus, records[1].ScanStatus)
	assert.True(t, first.FinishedAt.Equal(records[1].FinishedAt))
}

func TestSaveUpsertsByID(t *testing.T) {
	repo := newTestRepository(t)

	record := storage.Record{ID: "id-1", URL: "https://example.com/a.bin", Status: "failed", FinishedAt: time.Now().UTC()}
	require.NoError(t, repo.Save(record))
	record.Status = "completed"
	record.ScanStatus = "safe"
	require.NoError(t, repo.Save(record))

	records, err := repo.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "completed", records[0].Status)
	assert.Equal(t, "safe", records[0].ScanStatus)
}

func TestClear(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Save(storage.Record{ID: "id-1", FinishedAt: time.Now().UTC()}))
	require.NoError(t, repo.Clear())

	records, err := repo.All()
	require.NoError(t, err)
	assert.Empty(t, records)
}
