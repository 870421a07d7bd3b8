package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds connection settings for an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
}

// MinioStore is a BlobStore backed by any S3-compatible service.
type MinioStore struct {
	client  *minio.Client
	baseURL string
}

// NewMinioStore connects the client. PublicBaseURL defaults to the endpoint URL.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = client.EndpointURL().String()
	}
	log.Printf("blob store connected endpoint=%s public_base=%s", cfg.Endpoint, base)
	return &MinioStore{client: client, baseURL: strings.TrimRight(base, "/")}, nil
}

// Put uploads data under bucket/key unless the key already exists.
// The existence check and the upload are two requests, so two writers racing on
// one key can both pass the check. Callers must use keys that are unique per
// upload; attachment keys carry a ULID, so a collision here means key reuse.
func (s *MinioStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return "", ErrObjectExists
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return "", fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}

	_, err = s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return s.PublicURL(bucket, key), nil
}

// Delete removes bucket/key.
func (s *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PublicURL returns the durable URL of bucket/key, or "" when key is empty.
func (s *MinioStore) PublicURL(bucket, key string) string {
	return publicURL(s.baseURL, bucket, key)
}

func publicURL(base, bucket, key string) string {
	if key == "" {
		return ""
	}
	return base + "/" + bucket + "/" + strings.TrimLeft(key, "/")
}
