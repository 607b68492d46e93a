package source

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/cleandl/cleandl/internal/utils"
)

// Info is the result of probing a source before the transfer starts.
type Info struct {
	Size           int64 // 0 means the server did not report a length
	Filename       string
	SupportsRanges bool
}

// Source is one downloadable object. OpenRange returns a reader over
// [start, end]; end < 0 streams to the end of the object.
type Source interface {
	Probe(ctx context.Context) (Info, error)
	OpenRange(ctx context.Context, start, end int64) (io.ReadCloser, error)
}

// UnsupportedError marks URLs the engine cannot transfer itself, like
// store-protocol links that need an external application.
type UnsupportedError struct {
	URL    string
	Scheme string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported source scheme %q, an external application is required", e.Scheme)
}

// StatusError is a non-success HTTP response during a fetch.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Resolve maps a raw URL to a transfer backend.
func Resolve(rawURL string, client *utils.Client) (Source, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	switch parsed.Scheme {
	case "http", "https":
		return NewHTTP(rawURL, client), nil
	case "s3":
		return NewS3(rawURL, "")
	default:
		return nil, &UnsupportedError{URL: rawURL, Scheme: parsed.Scheme}
	}
}
