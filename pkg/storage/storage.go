// Package storage defines the blob surface used for listing assets. Keys are
// slash-separated regardless of backend.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// ErrInvalidKey is returned for keys that escape the backend root.
var ErrInvalidKey = errors.New("invalid storage key")

// Object describes a stored blob.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Backend is implemented by the local filesystem and S3-compatible stores.
// Delete and DeletePrefix succeed when nothing exists under the key.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	EnsurePrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}

// Join builds a clean key from parts, skipping empty ones.
func Join(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(strings.TrimSpace(part), "/")
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return path.Join(clean...)
}

// ValidateKey rejects absolute keys and any key containing a parent segment.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." || segment == "." {
			return ErrInvalidKey
		}
	}
	return nil
}

// AsPrefix normalizes prefix to end with a single slash.
func AsPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
