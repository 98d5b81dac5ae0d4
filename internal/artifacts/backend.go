// Package artifacts stores immutable share images under opaque keys.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/raquelitre/Encuesta/internal/config"
)

var (
	// ErrExists is returned by Create when the key is already taken.
	// Backends never overwrite an existing artifact.
	ErrExists = errors.New("artifact already exists")
	// ErrNotFound is returned by Get for unknown keys
	ErrNotFound = errors.New("artifact not found")
	// ErrInvalidKey is returned for keys that are not a single path element
	ErrInvalidKey = errors.New("invalid artifact key")
)

// Backend persists artifact bytes with create-only semantics
type Backend interface {
	Create(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// NewFromConfig creates the Backend selected by cfg.Backend
func NewFromConfig(ctx context.Context, cfg config.ArtifactsConfig) (Backend, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem artifacts require dir to be set")
		}
		return NewFileSystem(cfg.Dir)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 artifacts require s3_bucket to be set")
		}
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown artifacts backend: %s", cfg.Backend)
	}
}

func checkKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		filepath.Base(key) != key || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
