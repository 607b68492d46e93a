package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicScan(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(docPath, []byte("plain text"), 0644))
	exePath := filepath.Join(dir, "setup.EXE")
	require.NoError(t, os.WriteFile(exePath, []byte("mz"), 0644))

	h := &Heuristic{}

	result, err := h.Scan(context.Background(), docPath, "")
	require.NoError(t, err)
	assert.Equal(t, StatusSafe, result.Status)
	assert.True(t, result.Heuristic)

	result, err = h.Scan(context.Background(), exePath, "")
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, result.Status)
	assert.True(t, result.Heuristic)
}
