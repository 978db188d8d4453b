package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore stores objects in two MinIO buckets: one private, one with a
// public read policy. Visibility picks the bucket.
type MinioStore struct {
	client        *minio.Client
	privateBucket string
	publicBucket  string
	publicBase    string
}

var _ ObjectStore = (*MinioStore)(nil)

type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PrivateBucket string
	PublicBucket  string
	// PublicBase is the URL prefix serving the public bucket.
	PublicBase string
}

func NewMinioStore(cnf MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cnf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cnf.AccessKey, cnf.SecretKey, ""),
		Secure: cnf.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect minio: %w", err)
	}

	return &MinioStore{
		client:        client,
		privateBucket: cnf.PrivateBucket,
		publicBucket:  cnf.PublicBucket,
		publicBase:    cnf.PublicBase,
	}, nil
}

func (m *MinioStore) bucket(visibility Visibility) string {
	if visibility == VisibilityPublic {
		return m.publicBucket
	}
	return m.privateBucket
}

// Get reads one object. The key namespace decides the bucket, so a
// public object can never shadow a private one under the same key.
func (m *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	bucket := m.privateBucket
	if IsPublicKey(key) {
		bucket = m.publicBucket
	}

	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: object %s not found", key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("storage: object %s not found", key)
	}
	return data, nil
}

func (m *MinioStore) Put(ctx context.Context, key string, data []byte, visibility Visibility) error {
	_, err := m.client.PutObject(ctx, m.bucket(visibility), key,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

func (m *MinioStore) Remove(ctx context.Context, key string) error {
	var lastErr error
	for _, bucket := range []string{m.publicBucket, m.privateBucket} {
		if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{ForceDelete: true}); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (m *MinioStore) PublicURL(key string) string {
	return m.publicBase + "/" + key
}
