package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"media-pipeline/internal/config"
	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/ports/adapter"
)

var _ adapter.AssetStore = (*MinioStore)(nil)

// MinioStore puts assets into one bucket and hands out presigned GET URLs.
type MinioStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	log    *zerolog.Logger

	bucketOnce sync.Once
	bucketErr  error
}

func NewMinioStore(cfg config.MinioConfig, logger *zerolog.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, &domain.ConfigurationMissingError{Key: "storage.minio.endpoint"}
	}
	if cfg.Bucket == "" {
		return nil, &domain.ConfigurationMissingError{Key: "storage.minio.bucket"}
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	expiry := cfg.PresignTTL
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, expiry: expiry, log: logger}, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.bucketOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.bucketErr = fmt.Errorf("check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			s.bucketErr = fmt.Errorf("create bucket: %w", err)
			return
		}
		if s.log != nil {
			s.log.Info().Str("bucket", s.bucket).Msg("bucket created")
		}
	})
	return s.bucketErr
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (adapter.StoredObject, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return adapter.StoredObject{}, err
	}
	if contentType == "" {
		contentType = ContentType(key)
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return adapter.StoredObject{}, fmt.Errorf("upload %s: %w", key, err)
	}
	u, err := s.URL(ctx, key)
	if err != nil {
		return adapter.StoredObject{}, err
	}
	return adapter.StoredObject{Key: key, URL: u, Size: info.Size}, nil
}

func (s *MinioStore) URL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}
