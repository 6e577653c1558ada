package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Namespace prefixes every key the store writes, so ClearCache and Stats
// never touch unrelated data sharing the backend.
const Namespace = "tourguide_cache:"

// Config holds the store's tunables
type Config struct {
	// DefaultTTL applies to entries written without their own TTL. Zero in
	// Initialize keeps the current value; use SetItemWithTTL(key, v, 0) for
	// entries that never expire.
	DefaultTTL time.Duration
	// MaxSize is the nominal capacity in bytes used for usage reporting. Zero
	// in Initialize keeps the current value.
	MaxSize int64
}

// DefaultConfig is applied when the store is used before Initialize
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 24 * time.Hour,
		MaxSize:    5 * 1024 * 1024,
	}
}

// Stats summarizes the entries currently held in the backend
type Stats struct {
	TotalItems      int     `json:"total_items"`
	ExpiredItems    int     `json:"expired_items"`
	ActiveItems     int     `json:"active_items"`
	TotalSize       int64   `json:"total_size"`
	MaxSize         int64   `json:"max_size"`
	UsagePercentage float64 `json:"usage_percentage"`
}

// Store is a TTL-aware cache over a Backend. Every public operation reports
// failure as false or a miss; errors are logged, never returned.
type Store struct {
	mu          sync.Mutex
	backend     Backend
	namespace   string
	cfg         Config
	initialized bool
	now         func() time.Time
	logger      zerolog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithNamespace overrides the key prefix
func WithNamespace(ns string) Option {
	return func(s *Store) { s.namespace = ns }
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for swallowed errors
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an uninitialized store over backend
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		namespace: Namespace,
		now:       time.Now,
		logger:    log.Logger.With().Str("component", "cache").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Initialize merges cfg into the current configuration. Non-zero fields
// override; existing entries are kept.
func (s *Store) Initialize(cfg Config) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		s.cfg = DefaultConfig()
		s.initialized = true
	}
	if cfg.DefaultTTL != 0 {
		s.cfg.DefaultTTL = cfg.DefaultTTL
	}
	if cfg.MaxSize != 0 {
		s.cfg.MaxSize = cfg.MaxSize
	}

	s.logger.Debug().
		Dur("default_ttl", s.cfg.DefaultTTL).
		Int64("max_size", s.cfg.MaxSize).
		Msg("cache initialized")
	return true
}

// Config returns the active configuration
func (s *Store) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInitialized()
	return s.cfg
}

// SetItem stores value under key using the default TTL. A nil value is
// stored as undefined and reads back as such.
func (s *Store) SetItem(key string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInitialized()
	return s.set(key, value, s.cfg.DefaultTTL)
}

// SetItemWithTTL stores value under key with its own TTL. ttl <= 0 means no expiry.
func (s *Store) SetItemWithTTL(key string, value any, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInitialized()
	return s.set(key, value, ttl)
}

// GetItem returns the live value stored under key. An expired entry is
// deleted and reported as a miss.
func (s *Store) GetItem(key string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInitialized()

	entry, err := s.load(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		cacheMisses.Inc()
		return Item{}, false
	}

	if entry.Expired(s.now()) {
		if err := s.backend.Remove(s.namespace + key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache evict failed")
		}
		cacheExpirations.Inc()
		cacheMisses.Inc()
		return Item{}, false
	}

	cacheHits.Inc()
	return Item{value: entry.Value, undefined: entry.Undefined}, true
}

// RemoveItem deletes key. Removing a missing key succeeds.
func (s *Store) RemoveItem(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInitialized()

	if err := s.backend.Remove(s.namespace + key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache remove failed")
		return false
	}
	return true
}

// ClearCache deletes every entry in the store's namespace
func (s *Store) ClearCache() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInitialized()

	keys, err := s.backend.Keys(s.namespace)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache clear failed")
		return false
	}

	ok := true
	for _, k := range keys {
		if err := s.backend.Remove(k); err != nil {
			s.logger.Warn().Err(err).Str("key", k).Msg("cache clear: remove failed")
			ok = false
		}
	}
	s.logger.Debug().Int("removed", len(keys)).Msg("cache cleared")
	return ok
}

// Stats scans the namespace. Entries that have expired but were not read
// since count as expired; unreadable entries count as expired too.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInitialized()

	st := Stats{MaxSize: s.cfg.MaxSize}

	keys, err := s.backend.Keys(s.namespace)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache stats failed")
		return st
	}

	now := s.now()
	for _, k := range keys {
		data, err := s.backend.Get(k)
		if err != nil {
			continue
		}
		st.TotalItems++
		st.TotalSize += int64(len(k) + len(data))

		var e Entry
		if err := json.Unmarshal(data, &e); err != nil || e.Expired(now) {
			st.ExpiredItems++
		}
	}

	st.ActiveItems = st.TotalItems - st.ExpiredItems
	if st.MaxSize > 0 {
		st.UsagePercentage = float64(st.TotalSize) / float64(st.MaxSize) * 100
	}
	return st
}

// ensureInitialized must be called with s.mu held
func (s *Store) ensureInitialized() {
	if !s.initialized {
		s.cfg = DefaultConfig()
		s.initialized = true
	}
}

func (s *Store) set(key string, value any, ttl time.Duration) bool {
	data, err := s.encode(key, value, ttl)
	if err == nil {
		err = s.backend.Set(s.namespace+key, data)
	}
	if err != nil {
		cacheWriteFailures.Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return false
	}
	return true
}

func (s *Store) encode(key string, value any, ttl time.Duration) ([]byte, error) {
	now := s.now()
	e := Entry{Key: key, StoredAt: now}

	if value == nil {
		e.Undefined = true
	} else {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode value: %w", err)
		}
		e.Value = raw
	}

	if ttl > 0 {
		exp := now.Add(ttl)
		e.ExpiresAt = &exp
	}

	data, err := json.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	return data, nil
}

func (s *Store) load(key string) (*Entry, error) {
	data, err := s.backend.Get(s.namespace + key)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// unreadable entries are dropped so they stop costing a read
		_ = s.backend.Remove(s.namespace + key)
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &e, nil
}
