package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string        // default "staging"
	URLExpiry time.Duration // default 15m
}

// Store stages uploaded documents in MinIO so the OCR provider can fetch
// them by presigned URL.
type Store struct {
	client *minio.Client
	cfg    Config
	logger *slog.Logger
}

// New buat koneksi MinIO dan pastikan bucket ada
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "staging"
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Store{client: cli, cfg: cfg, logger: logger}, nil
}

// Stage uploads the file and returns a presigned GET URL plus a cleanup
// func that removes the object again.
func (s *Store) Stage(ctx context.Context, f review.FileHandle) (string, func(context.Context) error, error) {
	key := objectKey(s.cfg.Prefix, f.Name, time.Now().UTC(), uuid.NewString())

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(f.Data), int64(len(f.Data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", nil, fmt.Errorf("put object: %w", err)
	}

	cleanup := func(ctx context.Context) error {
		return s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{})
	}

	u, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, key, s.cfg.URLExpiry, url.Values{})
	if err != nil {
		if rmErr := cleanup(ctx); rmErr != nil {
			s.logger.Warn("storage.cleanup.failed", "key", key, "error", rmErr)
		}
		return "", nil, fmt.Errorf("presign object: %w", err)
	}

	s.logger.Debug("storage.stage.ok", "key", key, "bytes", len(f.Data))
	return u.String(), cleanup, nil
}

// Ping dipakai health check
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s not found", s.cfg.Bucket)
	}
	return nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// objectKey -> prefix/YYYY/MM/DD/<id>-<sanitized name>
func objectKey(prefix, name string, t time.Time, id string) string {
	base := unsafeKeyChars.ReplaceAllString(path.Base(strings.ReplaceAll(name, "\\", "/")), "_")
	if base == "" || base == "." || base == "_" {
		base = "document.pdf"
	}
	return path.Join(prefix, t.Format("2006/01/02"), id+"-"+base)
}
