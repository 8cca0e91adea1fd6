// Package objectstore moves the raw data files between the local data
// directory and an S3 bucket.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/okian/gotsim/internal/domain/failure"
	"github.com/okian/gotsim/pkg/logger"
)

// Client is the subset of the S3 API used for transfers.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config names the bucket and how to reach it.
type Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string // optional, for S3-compatible services
}

// S3Transfer uploads and downloads files under one bucket prefix.
type S3Transfer struct {
	client Client
	bucket string
	prefix string
	logger logger.Logger
}

// Option applies a configuration option to the S3Transfer.
type Option func(*S3Transfer)

// WithLogger sets a custom logger for the transfer.
func WithLogger(l logger.Logger) Option {
	return func(t *S3Transfer) {
		if l != nil {
			t.logger = l
		}
	}
}

// New wraps an existing client.
func New(client Client, bucket, prefix string, opts ...Option) *S3Transfer {
	t := &S3Transfer{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewS3Transfer builds a client from the default AWS credential chain.
func NewS3Transfer(ctx context.Context, cfg Config, opts ...Option) (*S3Transfer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is not set", failure.ErrConfig)
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", failure.ErrExternal, err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, cfg.Bucket, cfg.Prefix, opts...), nil
}

// Key returns the object key of a file name.
func (t *S3Transfer) Key(name string) string {
	if t.prefix == "" {
		return name
	}
	return path.Join(t.prefix, name)
}

// UploadDir uploads every regular file directly under dir and returns the
// keys written.
func (t *S3Transfer) UploadDir(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", failure.ErrExternal, dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return t.Upload(ctx, files)
}

// Upload uploads the given files, keyed by base name.
func (t *S3Transfer) Upload(ctx context.Context, files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	keys := make([]string, 0, len(files))
	for _, file := range files {
		key := t.Key(filepath.Base(file))
		if err := t.put(ctx, file, key); err != nil {
			return keys, err
		}
		t.logger.Info(ctx, "uploaded file", logger.String("file", file), logger.String("bucket", t.bucket), logger.String("key", key))
		keys = append(keys, key)
	}
	return keys, nil
}

func (t *S3Transfer) put(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", failure.ErrExternal, file, err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", failure.ErrExternal, file, err)
	}
	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return fmt.Errorf("%w: upload s3://%s/%s: %v", failure.ErrExternal, t.bucket, key, err)
	}
	return nil
}

// Download fetches the named objects into dir, creating it when needed.
// Each file is written to a temporary name and renamed into place.
func (t *S3Transfer) Download(ctx context.Context, names []string, dir string) error {
	if len(names) == 0 {
		return ErrNoFiles
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", failure.ErrExternal, dir, err)
	}
	for _, name := range names {
		key := t.Key(name)
		dst := filepath.Join(dir, filepath.Base(name))
		if err := t.get(ctx, key, dst); err != nil {
			return err
		}
		t.logger.Info(ctx, "downloaded file", logger.String("key", key), logger.String("file", dst))
	}
	return nil
}

func (t *S3Transfer) get(ctx context.Context, key, dst string) (err error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: download s3://%s/%s: %v", failure.ErrExternal, t.bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return fmt.Errorf("%w: %v", failure.ErrExternal, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = io.Copy(tmp, out.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %v", failure.ErrExternal, dst, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: write %s: %v", failure.ErrExternal, dst, err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("%w: rename %s: %v", failure.ErrExternal, dst, err)
	}
	return nil
}
