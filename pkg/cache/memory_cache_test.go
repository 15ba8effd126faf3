package cache

import (
	"testing"
	"time"
)

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache()
	
	// Test Set and Get
	cache.Set("key1", "value1", time.Hour)
	value, exists := cache.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("Expected value1, got %v", value)
	}
	
	// Test TTL expiration
	cache.Set("key2", "value2", time.Millisecond*100)
	time.Sleep(time.Millisecond * 200)
	_, exists = cache.Get("key2")
	if exists {
		t.Error("Expected key2 to be expired")
	}
	
	// Test Delete
	cache.Set("key3", "value3", time.Hour)
	cache.Delete("key3")
	_, exists = cache.Get("key3")
	if exists {
		t.Error("Expected key3 to be deleted")
	}
	
	// Test Clear
	cache.Set("key4", "value4", time.Hour)
	cache.Set("key5", "value5", time.Hour)
	cache.Clear()
	all := cache.GetAll()
	if len(all) != 0 {
		t.Error("Expected cache to be empty after Clear")
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}

	if limiter.Allow() {
		t.Error("Expected request to be rate limited")
	}

	limiter.Reset()
	if !limiter.Allow() {
		t.Error("Expected request after reset to be allowed")
	}
}
