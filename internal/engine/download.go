package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cleandl/cleandl/internal/scan"
)

// Download is the unit of work. All mutable fields are owned by the
// coordinator goroutine running the transfer; external readers only see
// copies via Snapshot.
type Download struct {
	ID        string
	URL       string
	CreatedAt time.Time

	mu         sync.Mutex
	name       string
	outputPath string
	totalSize  int64
	status     Status
	speed      int64
	md5        string
	sha1       string
	sha256     string
	scanResult *scan.Result
	message    string

	downloaded atomic.Int64
	gate       *gate
	cancelRun  context.CancelFunc
}

// Snapshot is a point-in-time copy of a download, safe to hand to any
// caller.
type Snapshot struct {
	ID         string
	URL        string
	Name       string
	OutputPath string
	TotalSize  int64
	Downloaded int64
	Status     Status
	Speed      int64 // bytes per second
	MD5        string
	SHA1       string
	SHA256     string
	Scan       *scan.Result
	Message    string
	CreatedAt  time.Time
}

func newDownload(url, outputPath string) *Download {
	return &Download{
		ID:         uuid.New().String(),
		URL:        url,
		CreatedAt:  time.Now(),
		outputPath: outputPath,
		status:     StatusQueued,
		gate:       newGate(),
	}
}

func (d *Download) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := Snapshot{
		ID:         d.ID,
		URL:        d.URL,
		Name:       d.name,
		OutputPath: d.outputPath,
		TotalSize:  d.totalSize,
		Downloaded: d.downloaded.Load(),
		Status:     d.status,
		Speed:      d.speed,
		MD5:        d.md5,
		SHA1:       d.sha1,
		SHA256:     d.sha256,
		Message:    d.message,
		CreatedAt:  d.CreatedAt,
	}
	if d.scanResult != nil {
		scanCopy := *d.scanResult
		snap.Scan = &scanCopy
	}
	return snap
}

func (d *Download) currentStatus() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Download) setStatus(s Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = s
}

// markStatus transitions from -> to if the download is currently in
// from, and reports whether the transition happened.
func (d *Download) markStatus(from, to Status) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != from {
		return false
	}
	d.status = to
	return true
}

func (d *Download) fail(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = StatusFailed
	d.message = message
	d.speed = 0
}

func (d *Download) setMeta(name, outputPath string, totalSize int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
	d.outputPath = outputPath
	d.totalSize = totalSize
}

func (d *Download) setTotalSize(totalSize int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.totalSize = totalSize
}

func (d *Download) setMessage(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.message = message
}

func (d *Download) setSpeed(bytesPerSec int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.speed = bytesPerSec
}

func (d *Download) setChecksums(md5sum, sha1sum, sha256sum string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.md5 = md5sum
	d.sha1 = sha1sum
	d.sha256 = sha256sum
}

func (d *Download) checksum(algorithm string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch algorithm {
	case "md5":
		return d.md5, true
	case "sha1":
		return d.sha1, true
	case "sha256":
		return d.sha256, true
	}
	return "", false
}

func (d *Download) setScan(result *scan.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scanResult = result
}

func (d *Download) destination() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputPath
}

func (d *Download) addBytes(n int64) {
	d.downloaded.Add(n)
}

func (d *Download) bytes() int64 {
	return d.downloaded.Load()
}
