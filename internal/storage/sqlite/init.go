package sqlite

import (
	"database/sql"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the history database and creates the schema if needed.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS downloads (
		id TEXT PRIMARY KEY,
		url TEXT,
		file_path TEXT,
		size INTEGER,
		md5 TEXT,
		sha1 TEXT,
		scan_status TEXT,
		status TEXT,
		finished_at DATETIME
	)`)

	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
