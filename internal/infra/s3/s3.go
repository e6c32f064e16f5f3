package s3

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewClient(cfg Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return client, nil
}

// PhotoPresigner turns stored photo keys into short-lived GET URLs for the
// deck snapshot. Keys are opaque here; the media pipeline owns them.
type PhotoPresigner struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewPhotoPresigner(client *minio.Client, bucket string, ttl time.Duration) *PhotoPresigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &PhotoPresigner{client: client, bucket: bucket, ttl: ttl}
}

func (p *PhotoPresigner) PresignPhotoURL(ctx context.Context, key string) (string, error) {
	if p == nil || p.client == nil {
		return "", fmt.Errorf("s3 client is not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("photo key is empty")
	}

	u, err := p.client.PresignedGetObject(ctx, p.bucket, key, p.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign photo url: %w", err)
	}

	return u.String(), nil
}
