// Package cache provides a namespaced key/value cache with per-entry expiry
// on top of a persistent storage backend.
package cache

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

var (
	// ErrNotFound is returned by a Backend when no value is stored under a key
	ErrNotFound = errors.New("cache entry not found")

	// ErrQuotaExceeded is returned by a Backend that has run out of space
	ErrQuotaExceeded = errors.New("cache storage quota exceeded")
)

// Backend is the persistent storage primitive the cache is layered on.
// Values are opaque bytes; keys are plain strings.
type Backend interface {
	// Get returns the bytes stored under key, or ErrNotFound
	Get(key string) ([]byte, error)

	// Set stores data under key, replacing any previous value
	Set(key string, data []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error

	// Keys lists every stored key that starts with prefix
	Keys(prefix string) ([]string, error)
}

// Entry is the envelope written to the backend for each cached value
type Entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value,omitempty"`
	Undefined bool            `json:"undefined,omitempty"`
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// Expired reports whether the entry's expiry is at or before now
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// Item is a value read back from the store
type Item struct {
	value     json.RawMessage
	undefined bool
}

// IsUndefined reports whether the item was stored from a nil value
func (i Item) IsUndefined() bool {
	return i.undefined
}

// Raw returns the encoded value; nil for an undefined item
func (i Item) Raw() json.RawMessage {
	return i.value
}

// Decode unmarshals the item into v. An undefined item leaves v untouched.
func (i Item) Decode(v any) error {
	if i.undefined {
		return nil
	}
	return json.Unmarshal(i.value, v)
}
