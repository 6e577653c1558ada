package cache

import (
	"crypto/md5"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
)

// FileBackend implements Backend using one JSON file per key
type FileBackend struct {
	dir string
}

type fileRecord struct {
	Key  string `json:"key"`
	Data []byte `json:"data"`
}

// NewFileBackend creates a file-based backend rooted at dir.
// If dir is empty, uses ~/.tourguide_cache
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		usr, err := user.Current()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(usr.HomeDir, ".tourguide_cache")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	return &FileBackend{dir: dir}, nil
}

// Dir returns the directory holding the cache files
func (fb *FileBackend) Dir() string {
	return fb.dir
}

// Get implements Backend
func (fb *FileBackend) Get(key string) ([]byte, error) {
	rec, err := fb.read(fb.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if rec.Key != key {
		// name collision with a different key
		return nil, ErrNotFound
	}
	return rec.Data, nil
}

// Set implements Backend
func (fb *FileBackend) Set(key string, data []byte) error {
	path := fb.path(key)

	b, err := json.MarshalIndent(&fileRecord{Key: key, Data: data}, "", "  ")
	if err != nil {
		return err
	}

	// Write to temporary file first, then rename (atomic operation)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, b, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		if errors.Is(err, syscall.ENOSPC) {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return err
	}

	return os.Rename(tmpPath, path)
}

// Remove implements Backend
func (fb *FileBackend) Remove(key string) error {
	err := os.Remove(fb.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Keys implements Backend. File names are lossy, so each file is opened to
// recover the key it holds.
func (fb *FileBackend) Keys(prefix string) ([]string, error) {
	dirEntries, err := os.ReadDir(fb.dir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := fb.read(filepath.Join(fb.dir, name))
		if err != nil {
			continue
		}
		if strings.HasPrefix(rec.Key, prefix) {
			keys = append(keys, rec.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (fb *FileBackend) read(path string) (*fileRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec fileRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

// path generates the full filesystem path for a cache key
func (fb *FileBackend) path(key string) string {
	return filepath.Join(fb.dir, fileName(key))
}

// fileName maps a key to a safe file name. A short hash of the original key
// keeps keys that sanitize to the same text apart.
func fileName(key string) string {
	hash := md5.Sum([]byte(key))

	// For very long keys, use hash to avoid filesystem limits
	if len(key) > maxKeyLength {
		return fmt.Sprintf("hash_%x.json", hash)
	}

	// Replace unsafe characters
	unsafe := []string{"/", "\\", ":", "?", "&", "=", "#", "<", ">", "|", "*", "\"", " "}
	result := key
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}

	return fmt.Sprintf("%s-%x.json", result, hash[:4])
}
