package objstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sback-go/internal/engine"
)

// presignTTL is how long a client-side upload URL stays valid.
const presignTTL = 15 * time.Minute

// S3Store stores archives in an S3-compatible bucket. Client uploads are
// served with presigned PUT URLs so archive bytes never transit the server.
type S3Store struct {
	name        string
	bucket      string
	region      string
	endpoint    string
	maxFileSize int64
	client      *s3.Client
	presigner   *s3.PresignClient
}

// S3Options configures an S3Store. AccessKey/SecretKey are optional; when
// empty the SDK's default credential chain is used.
type S3Options struct {
	Name        string
	Bucket      string
	Region      string
	Endpoint    string
	AccessKey   string
	SecretKey   string
	MaxFileSize int64
}

// NewS3Store creates an S3-backed store for the given bucket.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires s3_bucket to be set")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		name:        opts.Name,
		bucket:      opts.Bucket,
		region:      opts.Region,
		endpoint:    opts.Endpoint,
		maxFileSize: opts.MaxFileSize,
		client:      client,
		presigner:   s3.NewPresignClient(client),
	}, nil
}

func (s *S3Store) ProviderID() string   { return "s3" }
func (s *S3Store) ProviderName() string { return s.name }

func (s *S3Store) MaxFileSize() int64 { return s.maxFileSize }

// Put uploads the content server-side and returns the object's public URL.
func (s *S3Store) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("putting object %s: %w", key, err)
	}
	return s.objectURL(key), nil
}

// InitClientUpload presigns a PUT for the given key and size. The signed
// headers pin the content type and length so the URL cannot be reused for
// a different payload.
func (s *S3Store) InitClientUpload(ctx context.Context, key string, size int64, contentType string) (*engine.ClientUpload, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return nil, fmt.Errorf("presigning put for %s: %w", key, err)
	}

	return &engine.ClientUpload{
		Strategy:     engine.UploadClientS3,
		UploadURL:    req.URL,
		UploadMethod: req.Method,
		UploadHeaders: map[string]string{
			"Content-Type":   contentType,
			"Content-Length": fmt.Sprintf("%d", size),
		},
		SourceURL: s.objectURL(key),
	}, nil
}

// objectURL derives the public read URL for a key. With a custom endpoint
// the path-style form is used; otherwise the virtual-hosted AWS form.
func (s *S3Store) objectURL(key string) string {
	escaped := escapeKey(key)
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.endpoint, "/"), s.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
}

// escapeKey percent-encodes each path segment while keeping separators.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Compile-time check that S3Store implements the ObjectStore interface
var _ engine.ObjectStore = (*S3Store)(nil)
