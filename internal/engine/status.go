package engine

// Status is the lifecycle state of a download.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusVerifying   Status = "verifying"
	StatusCompleted   Status = "completed"
	StatusCanceled    Status = "canceled"
	StatusFailed      Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

// IsActive reports whether the download still has work in flight.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusDownloading || s == StatusPaused || s == StatusVerifying
}

// IsTerminal reports whether the download reached a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusFailed
}
