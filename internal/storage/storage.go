// Package storage is the object boundary: meal photos are written under a
// deterministic key and every write returns a content version that callers
// embed in URLs so an overwritten key never serves stale bytes.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

var (
	ErrNotFound  = errors.New("object not found")
	ErrEmptyKey  = errors.New("object key required")
	ErrNoVersion = errors.New("object version required")
)

// Object describes a stored blob.
type Object struct {
	Key     string `json:"key"`
	Version string `json:"version"`
	Size    int64  `json:"size"`
}

// ObjectStore is implemented by every backend.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
	URL(key, version string) (string, error)
}

// Key builds the storage key for one athlete's meal photo on a date.
func Key(athleteID, date, meal string) string {
	return path.Join(athleteID, date, meal)
}

// SplitKey reverses Key.
func SplitKey(key string) (athleteID, date, meal string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
