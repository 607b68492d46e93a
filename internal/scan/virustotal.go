package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://www.virustotal.com/api/v3"

// Files above this size are not uploaded for analysis, only looked up by hash.
const maxUploadSize = 32 * 1024 * 1024

// VirusTotal looks downloads up by SHA-256 and uploads small unknown
// files for analysis.
type VirusTotal struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewVirusTotal(apiKey string) *VirusTotal {
	return &VirusTotal{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// SetBaseURL overrides the API endpoint, for tests.
func (v *VirusTotal) SetBaseURL(baseURL string) {
	v.baseURL = baseURL
}

type analysisStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Undetected int `json:"undetected"`
}

type fileReport struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			LastAnalysisStats analysisStats `json:"last_analysis_stats"`
			Stats             analysisStats `json:"stats"`
			Status            string        `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
}

func (v *VirusTotal) Scan(ctx context.Context, path string, sha256 string) (*Result, error) {
	result, err := v.lookupHash(ctx, sha256)
	if err != nil {
		return nil, err
	}
	if result.Status != StatusNotFound {
		return result, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error checking file before upload: %v", err)
	}
	if info.Size() >= maxUploadSize {
		result.Message = "File not in the VirusTotal database and too large to upload"
		return result, nil
	}
	return v.upload(ctx, path)
}

func (v *VirusTotal) lookupHash(ctx context.Context, sha256 string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/files/%s", v.baseURL, sha256), nil)
	if err != nil {
		return nil, err
	}
	v.setHeaders(req)
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying VirusTotal: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var report fileReport
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			return nil, fmt.Errorf("error decoding VirusTotal report: %v", err)
		}
		result := classify(report.Data.Attributes.LastAnalysisStats)
		result.Link = fmt.Sprintf("https://www.virustotal.com/gui/file/%s/detection", sha256)
		return result, nil
	case http.StatusNotFound:
		return &Result{Status: StatusNotFound, Message: "File not found in the VirusTotal database"}, nil
	default:
		return nil, fmt.Errorf("VirusTotal API error: %d", resp.StatusCode)
	}
}

func (v *VirusTotal) upload(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file for upload: %v", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("error reading file for upload: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/files", v.baseURL), &body)
	if err != nil {
		return nil, err
	}
	v.setHeaders(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error uploading file to VirusTotal: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error uploading file: %d", resp.StatusCode)
	}
	var report fileReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("error decoding upload response: %v", err)
	}
	log.Debug().Str("op", "scan/virustotal").Msgf("File sent for analysis, id %s", report.Data.ID)
	return &Result{
		Status:  StatusPending,
		Message: "File sent for analysis, check results later",
	}, nil
}

// Analysis fetches the outcome of a previously submitted upload.
func (v *VirusTotal) Analysis(ctx context.Context, analysisID string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/analyses/%s", v.baseURL, analysisID), nil)
	if err != nil {
		return nil, err
	}
	v.setHeaders(req)
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying analysis: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("VirusTotal API error: %d", resp.StatusCode)
	}
	var report fileReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("error decoding analysis: %v", err)
	}
	if report.Data.Attributes.Status != "completed" {
		return &Result{Status: StatusPending, Message: fmt.Sprintf("Analysis in progress: %s", report.Data.Attributes.Status)}, nil
	}
	return classify(report.Data.Attributes.Stats), nil
}

func (v *VirusTotal) setHeaders(req *http.Request) {
	req.Header.Set("x-apikey", v.apiKey)
	req.Header.Set("accept", "application/json")
}

func classify(stats analysisStats) *Result {
	total := stats.Malicious + stats.Suspicious + stats.Undetected
	result := &Result{
		Message: fmt.Sprintf("Scan result: %d malicious, %d suspicious, %d undetected", stats.Malicious, stats.Suspicious, stats.Undetected),
		Details: map[string]int{
			"malicious":  stats.Malicious,
			"suspicious": stats.Suspicious,
			"undetected": stats.Undetected,
		},
	}
	if total == 0 {
		result.Status = StatusUnknown
		return result
	}
	threatLevel := float64(stats.Malicious+stats.Suspicious) / float64(total)
	switch {
	case threatLevel > 0.1:
		result.Status = StatusDanger
	case threatLevel > 0:
		result.Status = StatusWarning
	default:
		result.Status = StatusSafe
	}
	return result
}
