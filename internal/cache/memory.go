package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process layer in front of Redis. Entries are keyed
// by dataset version, so a reload never serves stale counts.
type MemoryCache struct {
	items *gocache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		items: gocache.New(ttl, 10*time.Minute),
	}
}

func (m *MemoryCache) Get(key string) (interface{}, bool) {
	return m.items.Get(key)
}

func (m *MemoryCache) Set(key string, value interface{}) {
	m.items.SetDefault(key, value)
}

func (m *MemoryCache) Flush() {
	m.items.Flush()
}

func (m *MemoryCache) Len() int {
	return m.items.ItemCount()
}
