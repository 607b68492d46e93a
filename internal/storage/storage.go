package storage

import "time"

// Record is one finished download as kept in history.
type Record struct {
	ID         string
	URL        string
	FilePath   string
	Size       int64
	MD5        string
	SHA1       string
	ScanStatus string
	Status     string
	FinishedAt time.Time
}

// Repository persists download history. The engine writes best-effort:
// storage errors are logged and never affect transfers.
type Repository interface {
	Save(record Record) error
	All() ([]Record, error)
	Clear() error
}
