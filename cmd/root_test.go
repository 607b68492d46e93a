package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleandl/cleandl/internal/config"
)

func TestDestinationHint(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")

	tests := []struct {
		name        string
		flag        string
		downloadDir string
		want        string
	}{
		{"explicit path wins", filepath.Join("out", "file.bin"), dir, filepath.Join("out", "file.bin")},
		{"no directory configured", "", "", ""},
		{"current directory is a no-op", "", ".", ""},
		{"configured directory", "", dir, dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.DownloadDir = tt.downloadDir
			assert.Equal(t, tt.want, destinationHint(tt.flag, cfg))
		})
	}

	// Using the configured directory creates it
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
