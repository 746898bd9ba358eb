package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source yields the raw CSV payload.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// S3Options configures S3Source. Empty credentials fall back to the default
// AWS credential chain.
type S3Options struct {
	Region          string
	Endpoint        string // optional, e.g. MinIO
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewSource picks a Source by URI scheme: s3://bucket/key, http(s)://...,
// anything else is a local path.
func NewSource(ctx context.Context, uri string, opts S3Options) (Source, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // "C:\..." parses as scheme "c"
		return FileSource{Path: uri}, nil
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return FileSource{Path: u.Path}, nil
	case "http", "https":
		return HTTPSource{URL: uri}, nil
	case "s3":
		return NewS3Source(ctx, u.Host, strings.TrimPrefix(u.Path, "/"), opts)
	default:
		return nil, fmt.Errorf("engine: unsupported source scheme %q", u.Scheme)
	}
}

type FileSource struct {
	Path string
}

func (s FileSource) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(s.Path)
}

func (s FileSource) String() string { return s.Path }

type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("engine: GET %s: %s", s.URL, resp.Status)
	}
	return resp.Body, nil
}

func (s HTTPSource) String() string { return s.URL }

type S3Source struct {
	client *s3.Client
	Bucket string
	Key    string
}

// NewS3Source builds an S3 client the same way for AWS and S3-compatible
// endpoints.
func NewS3Source(ctx context.Context, bucket, key string, opts S3Options) (*S3Source, error) {
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("engine: s3 source needs bucket and key, got %q/%q", bucket, key)
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("engine: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.PathStyle {
			o.UsePathStyle = true
		}
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return &S3Source{client: client, Bucket: bucket, Key: key}, nil
}

func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.Bucket, Key: &s.Key})
	if err != nil {
		return nil, fmt.Errorf("engine: get s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	return out.Body, nil
}

func (s *S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }
