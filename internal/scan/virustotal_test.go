package scan

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportJSON(malicious, suspicious, undetected int) string {
	return fmt.Sprintf(`{"data":{"id":"x","attributes":{"last_analysis_stats":{"malicious":%d,"suspicious":%d,"undetected":%d}}}}`,
		malicious, suspicious, undetected)
}

func TestScanKnownHash(t *testing.T) {
	tests := []struct {
		name       string
		report     string
		wantStatus Status
	}{
		{"clean file", reportJSON(0, 0, 70), StatusSafe},
		{"single engine flag", reportJSON(1, 0, 69), StatusWarning},
		{"widely detected", reportJSON(40, 5, 25), StatusDanger},
		{"no engine results", reportJSON(0, 0, 0), StatusUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "test-key", r.Header.Get("x-apikey"))
				assert.Contains(t, r.URL.Path, "/files/abc123")
				fmt.Fprint(w, tc.report)
			}))
			defer server.Close()

			vt := NewVirusTotal("test-key")
			vt.SetBaseURL(server.URL)
			result, err := vt.Scan(context.Background(), "ignored", "abc123")
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, result.Status)
			assert.Contains(t, result.Link, "abc123")
			assert.False(t, result.Heuristic)
		})
	}
}

func TestScanUnknownHashUploadsSmallFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.bin")
	require.NoError(t, os.WriteFile(path, []byte("tiny"), 0644))

	var uploaded bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		uploaded = true
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "small.bin", header.Filename)
		fmt.Fprint(w, `{"data":{"id":"analysis-1"}}`)
	}))
	defer server.Close()

	vt := NewVirusTotal("test-key")
	vt.SetBaseURL(server.URL)
	result, err := vt.Scan(context.Background(), path, "unknownhash")
	require.NoError(t, err)
	assert.True(t, uploaded)
	assert.Equal(t, StatusPending, result.Status)
}

func TestScanAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	vt := NewVirusTotal("test-key")
	vt.SetBaseURL(server.URL)
	_, err := vt.Scan(context.Background(), "ignored", "abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestAnalysis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/analyses/analysis-1")
		fmt.Fprint(w, `{"data":{"attributes":{"status":"completed","stats":{"malicious":0,"suspicious":0,"undetected":50}}}}`)
	}))
	defer server.Close()

	vt := NewVirusTotal("test-key")
	vt.SetBaseURL(server.URL)
	result, err := vt.Analysis(context.Background(), "analysis-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSafe, result.Status)
}

func TestNewProvider(t *testing.T) {
	assert.IsType(t, &Heuristic{}, NewProvider(""))
	assert.IsType(t, &VirusTotal{}, NewProvider("some-key"))
}
