package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
}

func (m memoryItem) expired() bool { return time.Now().After(m.expireAt) }

// MemoryCache is the in-process Service used when Redis is not configured.
// Values are stored marshaled so Get behaves identically across backends.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]memoryItem
	maxSize int
}

func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		data:    make(map[string]memoryItem),
		maxSize: maxSize,
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = time.Hour
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if len(mc.data) >= mc.maxSize {
		mc.evict()
	}
	mc.data[key] = memoryItem{data: b, expireAt: time.Now().Add(expiration)}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.RLock()
	item, ok := mc.data[key]
	mc.mu.RUnlock()

	if !ok || item.expired() {
		if ok {
			mc.mu.Lock()
			delete(mc.data, key)
			mc.mu.Unlock()
		}
		return ErrCacheMiss
	}
	return json.Unmarshal(item.data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.data, key)
	}
	return nil
}

func (mc *MemoryCache) Close() error { return nil }

// evict drops expired items first, then the soonest-to-expire to make room.
// Called with the write lock held.
func (mc *MemoryCache) evict() {
	var oldestKey string
	var oldest time.Time
	for k, v := range mc.data {
		if v.expired() {
			delete(mc.data, k)
			continue
		}
		if oldestKey == "" || v.expireAt.Before(oldest) {
			oldestKey, oldest = k, v.expireAt
		}
	}
	if len(mc.data) >= mc.maxSize && oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}

var _ Service = (*MemoryCache)(nil)
