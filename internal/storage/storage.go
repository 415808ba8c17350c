// Package storage keeps uploaded item images in an object store and hands
// back the public URL they are served from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is an object store with public read access.
type Store interface {
	// Put stores data under key and returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete removes the object under key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
	// PublicURL is the prefix of every URL returned by Put.
	PublicURL() string
}

// ErrInvalidKey is returned for keys that would escape the store's namespace.
var ErrInvalidKey = errors.New("invalid object key")

// ObjectKey builds a per-user key like "42/1714567890123-1b4e28ba.jpg".
func ObjectKey(userID int64, now time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%d/%d-%s.%s", userID, now.UnixMilli(), uuid.NewString()[:8], ext)
}

// KeyFromURL returns the object key for a URL produced with the given prefix.
func KeyFromURL(publicURL, prefix string) (string, bool) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	if !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(publicURL, prefix)
	if err := validateKey(key); err != nil {
		return "", false
	}
	return key, true
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}
