// Package assettest provides image fixtures and a disk-backed asset store for tests.
package assettest

import (
	"bytes"
	"testing"

	"github.com/angelmondragon/geodirectory-backend/internal/assets"
	"github.com/angelmondragon/geodirectory-backend/pkg/storage/local"
)

const DefaultMaxBytes = 2 * 1024 * 1024

// PNG returns bytes that sniff as image/png.
func PNG() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)
}

// JPEG returns bytes that sniff as image/jpeg.
func JPEG() []byte {
	return append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), bytes.Repeat([]byte{0}, 32)...)
}

// WebP returns bytes that sniff as image/webp.
func WebP() []byte {
	return append([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "), bytes.Repeat([]byte{0}, 32)...)
}

// Oversized returns a PNG payload one byte over limit.
func Oversized(limit int) []byte {
	head := PNG()
	return append(head, bytes.Repeat([]byte{0}, limit-len(head)+1)...)
}

// NewLocalStore returns an asset store rooted in a temp dir plus that dir.
func NewLocalStore(t testing.TB) (*assets.Store, *local.Store) {
	t.Helper()
	backend, err := local.New(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	store, err := assets.NewStore(backend, DefaultMaxBytes, nil)
	if err != nil {
		t.Fatalf("asset store: %v", err)
	}
	return store, backend
}
