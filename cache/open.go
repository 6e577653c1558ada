package cache

import (
	"fmt"
	"path/filepath"
)

// Backend kinds accepted by OpenBackend
const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// OpenBackend opens the named backend rooted at dir. The returned close func
// is never nil.
func OpenBackend(kind, dir string) (Backend, func() error, error) {
	noop := func() error { return nil }

	switch kind {
	case BackendFile, "":
		fb, err := NewFileBackend(dir)
		if err != nil {
			return nil, noop, err
		}
		return fb, noop, nil
	case BackendBadger:
		if dir != "" {
			dir = filepath.Join(dir, "badger")
		}
		bb, err := OpenBadger(dir)
		if err != nil {
			return nil, noop, err
		}
		return bb, bb.Close, nil
	case BackendMemory:
		return NewMemoryBackend(0), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", kind)
	}
}
