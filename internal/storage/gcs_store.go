package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
)

type gcsBucket interface {
	Attrs(ctx context.Context, object string) error
	SignedURL(object string, opts *storage.SignedURLOptions) (string, error)
}

// bucketHandle adapts *storage.BucketHandle to gcsBucket.
type bucketHandle struct {
	handle *storage.BucketHandle
}

func (b bucketHandle) Attrs(ctx context.Context, object string) error {
	_, err := b.handle.Object(object).Attrs(ctx)
	return err
}

func (b bucketHandle) SignedURL(object string, opts *storage.SignedURLOptions) (string, error) {
	return b.handle.SignedURL(object, opts)
}

// GCSStore serves prompt audio from Google Cloud Storage through V4 signed URLs.
type GCSStore struct {
	client *storage.Client
	bucket gcsBucket
	prefix string
	ext    string
	ttl    time.Duration
	now    func() time.Time
}

// NewGCSStore uses application default credentials.
func NewGCSStore(ctx context.Context, cfg Config) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs audio store requires a bucket")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	s := newGCSStore(bucketHandle{handle: client.Bucket(cfg.Bucket)}, cfg)
	s.client = client
	return s, nil
}

func newGCSStore(bucket gcsBucket, cfg Config) *GCSStore {
	return &GCSStore{
		bucket: bucket,
		prefix: cfg.Prefix,
		ext:    cfg.Extension,
		ttl:    ttlOrDefault(cfg.URLTTL),
		now:    time.Now,
	}
}

// FetchPromptAudio checks the object exists and signs a GET for it.
func (s *GCSStore) FetchPromptAudio(ctx context.Context, questionID string) (string, error) {
	object, err := objectKey(s.prefix, questionID, s.ext)
	if err != nil {
		return "", err
	}

	if err := s.bucket.Attrs(ctx, object); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, questionID)
		}
		return "", fmt.Errorf("gcs attrs %s: %w", object, err)
	}

	url, err := s.bucket.SignedURL(object, &storage.SignedURLOptions{
		Method:  "GET",
		Scheme:  storage.SigningSchemeV4,
		Expires: s.now().Add(s.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("gcs sign %s: %w", object, err)
	}
	return url, nil
}

// Close releases the GCS client.
func (s *GCSStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
