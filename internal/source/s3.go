package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source transfers one s3://bucket/key object with ranged GetObject
// calls, so pause/resume/cancel behave the same as for HTTP sources.
type S3Source struct {
	bucket  string
	key     string
	profile string

	once    sync.Once
	client  *s3.Client
	initErr error
}

func NewS3(rawURL, profile string) (*S3Source, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	return &S3Source{bucket: bucket, key: key, profile: profile}, nil
}

func parseS3URL(rawURL string) (string, string, error) {
	trimmed := strings.TrimPrefix(rawURL, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 URL %q, expected s3://bucket/key", rawURL)
	}
	return parts[0], parts[1], nil
}

func (s *S3Source) getClient(ctx context.Context) (*s3.Client, error) {
	s.once.Do(func() {
		opts := []func(*config.LoadOptions) error{
			config.WithRetryMode("adaptive"),
		}
		if s.profile != "" {
			opts = append(opts, config.WithSharedConfigProfile(s.profile))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.initErr = fmt.Errorf("error loading AWS config: %v", err)
			return
		}
		s.client = s3.NewFromConfig(cfg)
	})
	return s.client, s.initErr
}

func (s *S3Source) Probe(ctx context.Context) (Info, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return Info{}, err
	}
	headObj, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return Info{}, fmt.Errorf("error accessing s3://%s/%s: %v", s.bucket, s.key, err)
	}
	size := int64(0)
	if headObj.ContentLength != nil {
		size = *headObj.ContentLength
	}
	return Info{
		Size:           size,
		Filename:       path.Base(s.key),
		SupportsRanges: true,
	}, nil
}

func (s *S3Source) OpenRange(ctx context.Context, start, end int64) (io.ReadCloser, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	}
	if start > 0 || end >= 0 {
		if end >= 0 {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", start, end))
		} else {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-", start))
		}
	}
	result, err := client.GetObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("error getting object: %v", err)
	}
	return result.Body, nil
}
