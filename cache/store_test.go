package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T, backend Backend) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := NewStore(backend, WithClock(clock.Now))
	require.True(t, s.Initialize(Config{DefaultTTL: time.Minute, MaxSize: 10_000}))
	return s, clock
}

type route struct {
	ID      string   `json:"id"`
	Upvotes int      `json:"upvotes"`
	Sites   []string `json:"sites"`
}

func TestRoundTrip(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryBackend(0))

	t.Run("struct", func(t *testing.T) {
		in := route{ID: "A", Upvotes: 100, Sites: []string{"Louvre", "Eiffel Tower"}}
		require.True(t, s.SetItem("test:item1", in))

		out, ok := GetAs[route](s, "test:item1")
		require.True(t, ok)
		assert.Equal(t, in, out)
	})

	t.Run("map", func(t *testing.T) {
		in := map[string]any{"name": "Paris", "days": 3.0, "tags": []any{"art", "food"}}
		require.True(t, s.SetItem("test:item2", in))

		out, ok := GetAs[map[string]any](s, "test:item2")
		require.True(t, ok)
		assert.Equal(t, in, out)
	})

	t.Run("scalars", func(t *testing.T) {
		require.True(t, s.SetItem("test:string", "hello"))
		require.True(t, s.SetItem("test:number", 42))
		require.True(t, s.SetItem("test:bool", false))

		str, ok := GetAs[string](s, "test:string")
		require.True(t, ok)
		assert.Equal(t, "hello", str)

		n, ok := GetAs[int](s, "test:number")
		require.True(t, ok)
		assert.Equal(t, 42, n)

		b, ok := GetAs[bool](s, "test:bool")
		require.True(t, ok)
		assert.False(t, b)
	})

	t.Run("undefined", func(t *testing.T) {
		require.True(t, s.SetItem("test:undefined", nil))

		item, ok := s.GetItem("test:undefined")
		require.True(t, ok, "undefined values are stored, not dropped")
		assert.True(t, item.IsUndefined())
		assert.Nil(t, item.Raw())

		target := "untouched"
		require.NoError(t, item.Decode(&target))
		assert.Equal(t, "untouched", target)
	})
}

func TestGetItemMissing(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryBackend(0))

	_, ok := s.GetItem("test:nope")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	s, clock := newTestStore(t, NewMemoryBackend(0))

	require.True(t, s.SetItem("test:ttl", "v"))
	require.True(t, s.SetItem("test:other", "w"))

	clock.Advance(59 * time.Second)
	v, ok := GetAs[string](s, "test:ttl")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(time.Second)

	st := s.Stats()
	assert.Equal(t, 2, st.TotalItems)
	assert.Equal(t, 2, st.ExpiredItems, "expired entries count until read")
	assert.Equal(t, 0, st.ActiveItems)

	_, ok = s.GetItem("test:ttl")
	assert.False(t, ok, "entry is expired exactly at its TTL")

	st = s.Stats()
	assert.Equal(t, 1, st.TotalItems, "reading an expired entry evicts it")
	assert.Equal(t, 1, st.ExpiredItems)
	assert.Equal(t, 0, st.ActiveItems)
}

func TestSetItemWithTTL(t *testing.T) {
	s, clock := newTestStore(t, NewMemoryBackend(0))

	require.True(t, s.SetItemWithTTL("test:short", "a", 5*time.Second))
	require.True(t, s.SetItemWithTTL("test:forever", "b", 0))

	clock.Advance(time.Hour)

	_, ok := s.GetItem("test:short")
	assert.False(t, ok)

	v, ok := GetAs[string](s, "test:forever")
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestRemoveItemIdempotent(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryBackend(0))

	require.True(t, s.SetItem("test:gone", 1))
	assert.True(t, s.RemoveItem("test:gone"))
	assert.True(t, s.RemoveItem("test:gone"))

	_, ok := s.GetItem("test:gone")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Stats().TotalItems)
}

func TestClearCacheKeepsForeignKeys(t *testing.T) {
	backend := NewMemoryBackend(0)
	require.NoError(t, backend.Set("user_prefs", []byte(`{"theme":"dark"}`)))

	s, _ := newTestStore(t, backend)
	keys := []string{"test:item1", "test:item2", "routes:ranked"}
	for _, k := range keys {
		require.True(t, s.SetItem(k, k))
	}

	assert.True(t, s.ClearCache())

	for _, k := range keys {
		_, ok := s.GetItem(k)
		assert.False(t, ok, "key %s should be gone", k)
	}

	data, err := backend.Get("user_prefs")
	require.NoError(t, err)
	assert.Equal(t, `{"theme":"dark"}`, string(data))
}

func TestStatsUsage(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryBackend(0))

	st := s.Stats()
	assert.Equal(t, Stats{MaxSize: 10_000}, st)

	require.True(t, s.SetItem("test:a", "x"))
	st = s.Stats()
	assert.Equal(t, 1, st.TotalItems)
	assert.Equal(t, 1, st.ActiveItems)
	assert.Positive(t, st.TotalSize)
	assert.InDelta(t, float64(st.TotalSize)/10_000*100, st.UsagePercentage, 1e-9)
}

func TestStatsWithoutMaxSize(t *testing.T) {
	s := NewStore(NewMemoryBackend(0))
	s.Initialize(Config{})
	s.cfg.MaxSize = 0

	require.True(t, s.SetItem("test:a", "x"))
	st := s.Stats()
	assert.Equal(t, int64(0), st.MaxSize)
	assert.Equal(t, 0.0, st.UsagePercentage)
}

func TestInitializeMerges(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryBackend(0))
	require.True(t, s.SetItem("test:kept", "v"))

	require.True(t, s.Initialize(Config{DefaultTTL: 2 * time.Hour}))

	cfg := s.Config()
	assert.Equal(t, 2*time.Hour, cfg.DefaultTTL)
	assert.Equal(t, int64(10_000), cfg.MaxSize, "unset fields keep their value")

	_, ok := s.GetItem("test:kept")
	assert.True(t, ok, "re-initializing keeps entries")
}

func TestAutoInitialize(t *testing.T) {
	s := NewStore(NewMemoryBackend(0))

	require.True(t, s.SetItem("test:auto", 1))
	assert.Equal(t, DefaultConfig(), s.Config())

	n, ok := GetAs[int](s, "test:auto")
	require.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestQuotaExceededReturnsFalse(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryBackend(256))

	assert.False(t, s.SetItem("test:big", make([]byte, 1024)))
	_, ok := s.GetItem("test:big")
	assert.False(t, ok)
}

type unmarshalable struct{}

func (unmarshalable) MarshalJSON() ([]byte, error) { return nil, errors.New("cannot encode") }

func TestUnserializableValueReturnsFalse(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryBackend(0))

	assert.False(t, s.SetItem("test:bad", unmarshalable{}))
	_, ok := s.GetItem("test:bad")
	assert.False(t, ok)
}

type failingBackend struct {
	*MemoryBackend
}

func (failingBackend) Remove(string) error { return errors.New("disk on fire") }

func (failingBackend) Keys(string) ([]string, error) { return nil, errors.New("disk on fire") }

func TestBackendFailuresAreSwallowed(t *testing.T) {
	s, _ := newTestStore(t, failingBackend{NewMemoryBackend(0)})

	assert.False(t, s.RemoveItem("test:x"))
	assert.False(t, s.ClearCache())
	assert.Equal(t, 0, s.Stats().TotalItems)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	backend := NewMemoryBackend(0)
	s, _ := newTestStore(t, backend)
	require.NoError(t, backend.Set(Namespace+"test:corrupt", []byte("{not json")))

	assert.Equal(t, 1, s.Stats().ExpiredItems)

	_, ok := s.GetItem("test:corrupt")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Stats().TotalItems, "corrupt entry is dropped on read")
}

func TestConcurrentAccess(t *testing.T) {
	s, _ := newTestStore(t, NewMemoryBackend(0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := KeyFor("test:concurrent", map[string]string{"n": string(rune('a' + i))})
				s.SetItem(key, j)
				s.GetItem(key)
				s.Stats()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, s.Stats().TotalItems)
}

func TestDefaultStore(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	s := NewStore(NewMemoryBackend(0))
	SetDefault(s)
	assert.Same(t, s, Default())
}

func TestEnvelopeSizeMatchesStats(t *testing.T) {
	backend := NewMemoryBackend(0)
	s, _ := newTestStore(t, backend)
	require.True(t, s.SetItem("test:env", map[string]int{"a": 1}))

	data, err := backend.Get(Namespace + "test:env")
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"size"`)
	assert.Equal(t, int64(len(Namespace+"test:env")+len(data)), s.Stats().TotalSize)
}
