// Package storage resolves prerecorded question prompt audio to short-lived signed URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when no prompt audio exists for a question id.
var ErrNotFound = errors.New("prompt audio not found")

// Backend names a storage provider.
type Backend string

const (
	BackendNone Backend = "none"
	BackendS3   Backend = "s3"
	BackendGCS  Backend = "gcs"
)

// DefaultURLTTL bounds how long a signed prompt URL stays valid.
const DefaultURLTTL = 15 * time.Minute

// Store resolves prompt audio.
type Store interface {
	FetchPromptAudio(ctx context.Context, questionID string) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend   Backend
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	Extension string
	URLTTL    time.Duration
}

// New constructs the configured store. BackendNone returns a nil store.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendS3:
		return NewS3Store(ctx, cfg)
	case BackendGCS:
		return NewGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported audio store backend: %s", cfg.Backend)
	}
}

// objectKey maps a question id to its object key.
func objectKey(prefix, questionID, ext string) (string, error) {
	id := strings.TrimSpace(questionID)
	if id == "" || strings.Contains(id, "/") || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid question id %q", questionID)
	}
	if ext == "" {
		ext = ".mp3"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return prefix + id + ext, nil
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultURLTTL
	}
	return ttl
}
