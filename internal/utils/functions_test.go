package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"file%20name.txt", "file name.txt"},
		{"archive.tar.gz?token=abc", "archive.tar.gz"},
		{`bad<name>:"here".bin`, "bad_name___here_.bin"},
		{"", "downloaded_file"},
		{"..", "downloaded_file"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeFilename(tc.in), "input %q", tc.in)
	}
}

func TestFilenameFromURL(t *testing.T) {
	assert.Equal(t, "file.zip", FilenameFromURL("https://example.com/downloads/file.zip"))
	assert.Equal(t, "file.zip", FilenameFromURL("https://example.com/downloads/file.zip?sig=abc"))
	assert.Equal(t, "downloaded_file", FilenameFromURL("https://example.com/"))
}

func TestRenewOutputPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	renewed := RenewOutputPath(path)
	assert.Equal(t, filepath.Join(dir, "data-(1).bin"), renewed)

	require.NoError(t, os.WriteFile(renewed, []byte("x"), 0644))
	assert.Equal(t, filepath.Join(dir, "data-(2).bin"), RenewOutputPath(path))
}

func TestParseHeaderArgs(t *testing.T) {
	headers := ParseHeaderArgs([]string{"Authorization: Bearer token", "X-Custom:value", "malformed"})
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer token",
		"X-Custom":      "value",
	}, headers)
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "0 B/s", FormatSpeed(0))
	assert.Equal(t, "1.0 MiB/s", FormatSpeed(1024*1024))
}
