package cache

import (
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	payload    []byte
	expiration time.Time
}

type MemoryCache struct {
	store sync.Map
	done  chan struct{}
	once  sync.Once
}

func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{done: make(chan struct{})}
	go c.cleanup()
	return c
}

func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.store.Store(key, &memoryItem{
		payload:    payload,
		expiration: time.Now().Add(ttl),
	})
	return nil
}

func (c *MemoryCache) Get(key string, dest interface{}) error {
	raw, exists := c.store.Load(key)
	if !exists {
		return ErrCacheMiss
	}
	item := raw.(*memoryItem)
	if time.Now().After(item.expiration) {
		c.store.Delete(key)
		return ErrCacheMiss
	}
	return json.Unmarshal(item.payload, dest)
}

func (c *MemoryCache) Delete(key string) error {
	c.store.Delete(key)
	return nil
}

func (c *MemoryCache) DeletePattern(pattern string) error {
	c.store.Range(func(key, _ interface{}) bool {
		if matchPattern(key.(string), pattern) {
			c.store.Delete(key)
		}
		return true
	})
	return nil
}

func (c *MemoryCache) Exists(key string) (bool, error) {
	raw, exists := c.store.Load(key)
	if !exists {
		return false, nil
	}
	if time.Now().After(raw.(*memoryItem).expiration) {
		c.store.Delete(key)
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) Stats() map[string]interface{} {
	count := 0
	c.store.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return map[string]interface{}{
		"items": count,
		"type":  "memory",
	}
}

func (c *MemoryCache) Health() error {
	return nil
}

func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.store.Range(func(key, value interface{}) bool {
				if now.After(value.(*memoryItem).expiration) {
					c.store.Delete(key)
				}
				return true
			})
		}
	}
}
