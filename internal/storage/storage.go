package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/common/config"
)

var (
	// ErrNotFound is returned when no object is stored under a key
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for keys that could escape the storage root
	ErrInvalidKey = errors.New("invalid object key")
)

// Object is a stored blob
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Storage keeps uploaded blobs such as user avatars
type Storage interface {
	// Put stores body under key, replacing any previous object
	Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) error
	// Get opens the object stored under key
	Get(ctx context.Context, key string) (*Object, error)
	// Delete removes the object stored under key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(?:/[A-Za-z0-9_-]+)*(?:\.[A-Za-z0-9]+)?$`)

// ValidateKey rejects keys with traversal segments or unexpected characters
func ValidateKey(key string) error {
	if key == "" || len(key) > 255 || strings.Contains(key, "..") || !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// New builds the storage selected by cfg.Type
func New(logger *zap.Logger, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "disk":
		return NewDiskStorage(logger, cfg.Disk.Path)
	case "s3":
		return NewS3Storage(logger, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
