package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	if err := c.Set("tasks:user-1", payload{Name: "list", Count: 3}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got payload
	if err := c.Get("tasks:user-1", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "list" || got.Count != 3 {
		t.Errorf("Unexpected value: %+v", got)
	}

	if err := c.Get("tasks:missing", &got); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	c.Set("short", payload{}, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	var got payload
	if err := c.Get("short", &got); err != ErrCacheMiss {
		t.Errorf("Expected expired entry to miss, got %v", err)
	}
	if ok, _ := c.Exists("short"); ok {
		t.Error("Expired key should not exist")
	}
}

func TestMemoryCache_DeletePattern(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	c.Set("tasks:a", payload{}, time.Minute)
	c.Set("tasks:b", payload{}, time.Minute)
	c.Set("session:a", payload{}, time.Minute)

	if err := c.DeletePattern("tasks:*"); err != nil {
		t.Fatalf("DeletePattern failed: %v", err)
	}

	var got payload
	if err := c.Get("tasks:a", &got); err != ErrCacheMiss {
		t.Error("Expected tasks:a to be deleted")
	}
	if err := c.Get("session:a", &got); err != nil {
		t.Errorf("session:a should survive, got %v", err)
	}
}

func setupRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, "test:"), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := setupRedisCache(t)
	defer mr.Close()

	if err := c.Set("tasks:user-1", payload{Name: "cloud", Count: 2}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got payload
	if err := c.Get("tasks:user-1", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "cloud" || got.Count != 2 {
		t.Errorf("Unexpected value: %+v", got)
	}

	if err := c.Get("nope", &got); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisCache_DeletePattern(t *testing.T) {
	c, mr := setupRedisCache(t)
	defer mr.Close()

	c.Set("tasks:a", payload{}, time.Minute)
	c.Set("tasks:b", payload{}, time.Minute)
	c.Set("other", payload{}, time.Minute)

	if err := c.DeletePattern("tasks:*"); err != nil {
		t.Fatalf("DeletePattern failed: %v", err)
	}

	var got payload
	if err := c.Get("tasks:a", &got); err != ErrCacheMiss {
		t.Error("Expected tasks:a to be deleted")
	}
	if err := c.Get("other", &got); err != nil {
		t.Errorf("other should survive, got %v", err)
	}
}

func TestRedisCache_Health(t *testing.T) {
	c, mr := setupRedisCache(t)

	if err := c.Health(); err != nil {
		t.Errorf("Expected healthy cache, got %v", err)
	}

	mr.Close()
	if err := c.Health(); err == nil {
		t.Error("Expected health check to fail after server shutdown")
	}
}
