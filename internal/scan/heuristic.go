package scan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

var executableExtensions = map[string]bool{
	".exe": true,
	".dll": true,
	".bat": true,
	".cmd": true,
	".msi": true,
	".scr": true,
}

const largeFileThreshold = 100 * 1024 * 1024

// Heuristic is the no-credential fallback: it classifies by file
// extension and size only, and marks its results as such.
type Heuristic struct{}

func (h *Heuristic) Scan(_ context.Context, path string, _ string) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	result := &Result{Heuristic: true}
	switch {
	case executableExtensions[ext]:
		result.Status = StatusWarning
		result.Message = "Executable file, verify before running (heuristic, no scan credential configured)"
	case size > largeFileThreshold:
		result.Status = StatusUnknown
		result.Message = "Large file, no scan performed (heuristic, no scan credential configured)"
	default:
		result.Status = StatusSafe
		result.Message = "No risk indicators found (heuristic, no scan credential configured)"
	}
	return result, nil
}
