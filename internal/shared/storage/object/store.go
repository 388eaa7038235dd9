package object

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"sheetchart-web/internal/shared/util"
)

// Object describes a stored blob.
type Object struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	// URL is a time-limited download link, set by stores that can sign one.
	URL string `json:"url,omitempty"`
}

// ObjectStore saves and retrieves exported artifacts.
type ObjectStore interface {
	Put(ctx context.Context, owner, name, contentType string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Linker is implemented by stores that can hand out direct download links.
type Linker interface {
	Link(ctx context.Context, key string) (string, error)
}

// NewKey returns a unique storage key for name under owner's namespace. The
// owner is hashed so keys never reveal client ids.
func NewKey(owner, name string) (string, error) {
	clean, err := util.SanitizeFileName(name)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join(util.HashKey(owner), uuid.NewString()+"_"+clean), nil
}

// CleanKey returns key when it is already in canonical form. Keys with dot
// segments, duplicate or trailing separators, or a leading slash are rejected.
func CleanKey(key string) (string, bool) {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key {
		return "", false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "." || seg == ".." {
			return "", false
		}
	}
	return key, true
}

// OwnedBy reports whether key was issued under owner's namespace. Only
// canonical keys can match.
func OwnedBy(key, owner string) bool {
	clean, ok := CleanKey(key)
	if !ok {
		return false
	}
	return strings.HasPrefix(clean, util.HashKey(owner)+"/")
}
