package cache

import "sync"

var (
	defaultMu    sync.Mutex
	defaultStore *Store
)

// Default returns the process-wide store. Until SetDefault is called it is
// backed by memory only.
func Default() *Store {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultStore == nil {
		defaultStore = NewStore(NewMemoryBackend(0))
	}
	return defaultStore
}

// SetDefault replaces the process-wide store
func SetDefault(s *Store) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultStore = s
}

// GetAs reads key from s and decodes it into a T. An undefined item decodes
// as the zero T.
func GetAs[T any](s *Store, key string) (T, bool) {
	var v T
	item, ok := s.GetItem(key)
	if !ok {
		return v, false
	}
	if err := item.Decode(&v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache decode failed")
		return v, false
	}
	return v, true
}
