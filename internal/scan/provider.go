package scan

import "context"

type Status string

const (
	StatusSafe     Status = "safe"
	StatusWarning  Status = "warning"
	StatusDanger   Status = "danger"
	StatusPending  Status = "pending"
	StatusNotFound Status = "not_found"
	StatusUnknown  Status = "unknown"
	StatusError    Status = "error"
)

// Result is stored verbatim on the download that was scanned.
type Result struct {
	Status    Status         `json:"status"`
	Message   string         `json:"message"`
	Link      string         `json:"link,omitempty"`
	Details   map[string]int `json:"details,omitempty"`
	Heuristic bool           `json:"heuristic,omitempty"`
}

// Provider classifies a finished download. Implementations must not
// fail the download: errors degrade to an error-status result upstream.
type Provider interface {
	Scan(ctx context.Context, path string, sha256 string) (*Result, error)
}

// NewProvider returns the VirusTotal provider when an API key is
// configured and the local heuristic classifier otherwise.
func NewProvider(apiKey string) Provider {
	if apiKey == "" {
		return &Heuristic{}
	}
	return NewVirusTotal(apiKey)
}
