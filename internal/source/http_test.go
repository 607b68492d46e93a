package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantSize    int64
		wantRanges  bool
		wantName    string
		errContains string
	}{
		{
			name: "size and range support",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Accept-Ranges", "bytes")
				w.Header().Set("Content-Length", "4096")
			},
			wantSize:   4096,
			wantRanges: true,
			wantName:   "file.bin",
		},
		{
			name: "content disposition filename wins",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Disposition", `attachment; filename="report final.pdf"`)
				w.Header().Set("Content-Length", "10")
			},
			wantSize: 10,
			wantName: "report final.pdf",
		},
		{
			name: "encoded filename parameter",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''na%C3%AFve%20data.csv")
			},
			wantName: "na_ve data.csv",
		},
		{
			name: "no length means streaming",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantSize: 0,
			wantName: "file.bin",
		},
		{
			name: "server error surfaces status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			errContains: "403",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()
			src := NewHTTP(server.URL+"/file.bin", nil)
			info, err := src.Probe(context.Background())
			if tc.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantSize, info.Size)
			assert.Equal(t, tc.wantRanges, info.SupportsRanges)
			assert.Equal(t, tc.wantName, info.Filename)
		})
	}
}

func TestProbeFollowsRedirects(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", "128")
	}))
	defer final.Close()
	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/real.bin", http.StatusFound)
	}))
	defer redirecting.Close()

	src := NewHTTP(redirecting.URL+"/alias", nil)
	info, err := src.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(128), info.Size)
	assert.Equal(t, "real.bin", info.Filename)
	assert.Equal(t, final.URL+"/real.bin", src.URL())
}

func TestProbeRedirectLoop(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/loop", http.StatusMovedPermanently)
	}))
	defer server.Close()

	src := NewHTTP(server.URL+"/loop", nil)
	_, err := src.Probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirects")
}

func TestOpenRange(t *testing.T) {
	payload := []byte("0123456789abcdef")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := r.Header.Get("Range")
		switch rangeHeader {
		case "bytes=4-7":
			w.WriteHeader(http.StatusPartialContent)
			w.Write(payload[4:8])
		case "bytes=8-":
			w.WriteHeader(http.StatusPartialContent)
			w.Write(payload[8:])
		case "":
			w.Write(payload)
		default:
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		}
	}))
	defer server.Close()
	src := NewHTTP(server.URL+"/data.bin", nil)

	body, err := src.OpenRange(context.Background(), 4, 7)
	require.NoError(t, err)
	got, err := io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, payload[4:8], got)

	body, err = src.OpenRange(context.Background(), 8, -1)
	require.NoError(t, err)
	got, err = io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, payload[8:], got)

	// Full-body fetch sends no Range header at all
	body, err = src.OpenRange(context.Background(), 0, -1)
	require.NoError(t, err)
	got, err = io.ReadAll(body)
	body.Close()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestResolve(t *testing.T) {
	src, err := Resolve("https://example.com/a.bin", nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src)

	src, err = Resolve("s3://bucket/key/object.bin", nil)
	require.NoError(t, err)
	assert.IsType(t, &S3Source{}, src)

	_, err = Resolve("ftp://example.com/a.bin", nil)
	var unsupported *UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "ftp", unsupported.Scheme)
}
