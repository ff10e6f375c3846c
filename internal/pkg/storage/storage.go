package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"
)

// Storage is the object store used for audit archives.
type Storage interface {
	// Put stores an object under key.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Get opens an object for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes an object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// Config selects and configures a backend.
type Config struct {
	Backend   string // local | s3
	LocalPath string

	S3Endpoint  string // empty for AWS, set for MinIO / R2
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// New builds the configured backend.
func New(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.LocalPath)
	case "s3":
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// WebhookKey is the archive key of a raw webhook body.
func WebhookKey(receivedAt time.Time, eventID string) string {
	if eventID == "" {
		eventID = fmt.Sprintf("unidentified-%d", receivedAt.UnixNano())
	}
	return path.Join("webhooks", receivedAt.UTC().Format("2006/01/02"), path.Base(eventID)+".json")
}
