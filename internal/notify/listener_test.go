package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDownload(t *testing.T) {
	var gotURL, gotPath string
	listener := NewListener("127.0.0.1:0", func(url, outputPath string) (string, error) {
		gotURL = url
		gotPath = outputPath
		return "id-1", nil
	})

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid request", `{"type":"download","url":"https://example.com/a.bin","filename":"a.bin"}`, http.StatusOK},
		{"type omitted", `{"url":"https://example.com/b.bin"}`, http.StatusOK},
		{"missing url", `{"type":"download"}`, http.StatusBadRequest},
		{"unknown type", `{"type":"sync","url":"https://example.com/c.bin"}`, http.StatusBadRequest},
		{"malformed json", `{nope`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			listener.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
	assert.Equal(t, "https://example.com/b.bin", gotURL)
	assert.Equal(t, "", gotPath)
}

func TestHandleDownloadReturnsID(t *testing.T) {
	listener := NewListener("127.0.0.1:0", func(url, outputPath string) (string, error) {
		return "id-42", nil
	})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"url":"https://example.com/a.bin"}`))
	rec := httptest.NewRecorder()
	listener.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "id-42")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	listener := NewListener("127.0.0.1:0", nil)
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	listener.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPing(t *testing.T) {
	listener := NewListener("127.0.0.1:0", nil)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	listener.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}
