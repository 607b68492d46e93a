package sqlite

import (
	"database/sql"
	"time"

	"github.com/cleandl/cleandl/internal/storage"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Save(record storage.Record) error {
	_, err := r.db.Exec(`
		INSERT INTO downloads (id, url, file_path, size, md5, sha1, scan_status, status, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_path = excluded.file_path,
			size = excluded.size,
			md5 = excluded.md5,
			sha1 = excluded.sha1,
			scan_status = excluded.scan_status,
			status = excluded.status,
			finished_at = excluded.finished_at
	`, record.ID, record.URL, record.FilePath, record.Size, record.MD5, record.SHA1,
		record.ScanStatus, record.Status, record.FinishedAt.Format(time.RFC3339))

	return err
}

func (r *HistoryRepository) All() ([]storage.Record, error) {
	rows, err := r.db.Query(`
		SELECT id, url, file_path, size, md5, sha1, scan_status, status, finished_at
		FROM downloads ORDER BY finished_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []storage.Record

	for rows.Next() {
		var record storage.Record

		var finishedAt string

		if err := rows.Scan(&record.ID, &record.URL, &record.FilePath, &record.Size,
			&record.MD5, &record.SHA1, &record.ScanStatus, &record.Status, &finishedAt); err != nil {
			return nil, err
		}

		record.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
		records = append(records, record)
	}

	return records, rows.Err()
}

func (r *HistoryRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM downloads`)

	return err
}
