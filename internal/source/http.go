package source

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cleandl/cleandl/internal/utils"
)

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

// HTTPSource transfers one http(s) URL with ranged GET requests.
type HTTPSource struct {
	url       string
	client    *utils.Client
	redirects int
}

func NewHTTP(rawURL string, client *utils.Client) *HTTPSource {
	if client == nil {
		client = utils.NewClient(utils.HTTPClientConfig{})
	}
	return &HTTPSource{url: rawURL, client: client}
}

// URL returns the current source URL, after any redirect resolution done
// by Probe.
func (s *HTTPSource) URL() string {
	return s.url
}

func (s *HTTPSource) Probe(ctx context.Context) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, "HEAD", s.url, nil)
	if err != nil {
		return Info{}, fmt.Errorf("error creating request: %v", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("error checking URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound {
		if location := resp.Header.Get("Location"); location != "" {
			if s.redirects >= 10 {
				return Info{}, fmt.Errorf("stopped after 10 redirects")
			}
			log.Debug().Str("op", "source/http").Msgf("Following redirect to %s", location)
			s.url = location
			s.redirects++
			return s.Probe(ctx)
		}
	}
	if resp.StatusCode >= 400 {
		return Info{}, &StatusError{Code: resp.StatusCode}
	}

	info := Info{
		Filename:       filenameFromHeaders(resp.Header),
		SupportsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
	}
	if info.Filename == "" {
		info.Filename = utils.FilenameFromURL(s.url)
	}
	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		size, err := strconv.ParseInt(contentLength, 10, 64)
		if err == nil && size > 0 {
			info.Size = size
		}
	}
	return info, nil
}

func (s *HTTPSource) OpenRange(ctx context.Context, start, end int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.url, nil)
	if err != nil {
		return nil, err
	}
	if start > 0 || end >= 0 {
		if end >= 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
		} else {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
		}
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return resp.Body, nil
}

func filenameFromHeaders(header http.Header) string {
	contentDisposition := header.Get("Content-Disposition")
	if contentDisposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentDisposition)
	if err != nil {
		return ""
	}
	if fn, ok := params["filename"]; ok && fn != "" {
		return filenameRegex.ReplaceAllString(fn, "_")
	}
	if fn, ok := params["filename*"]; ok && fn != "" {
		if strings.HasPrefix(fn, "UTF-8''") {
			unescaped, _ := url.PathUnescape(strings.TrimPrefix(fn, "UTF-8''"))
			return filenameRegex.ReplaceAllString(unescaped, "_")
		}
	}
	return ""
}
