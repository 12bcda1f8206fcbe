package cache

import (
	"strconv"
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	if _, found := c.Get("missing"); found {
		t.Error("Get() on empty cache should miss")
	}

	c.Set("a", "alpha")
	got, found := c.Get("a")
	if !found || got != "alpha" {
		t.Errorf("Get(a) = %q, %v; want alpha, true", got, found)
	}

	// Overwrite keeps a single entry
	c.Set("a", "beta")
	got, _ = c.Get("a")
	if got != "beta" {
		t.Errorf("Get(a) after overwrite = %q, want beta", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](3, time.Minute)

	for i := 0; i < 3; i++ {
		c.Set(strconv.Itoa(i), i)
	}

	// Touch "0" so it becomes most recently used, then push one more entry.
	c.Get("0")
	c.Set("3", 3)

	if _, found := c.Get("1"); found {
		t.Error("least recently used entry should have been evicted")
	}
	if _, found := c.Get("0"); !found {
		t.Error("recently used entry should survive eviction")
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)

	c.Set("a", "alpha")
	time.Sleep(20 * time.Millisecond)

	if _, found := c.Get("a"); found {
		t.Error("expired entry should not be returned")
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	c := NewLRUCache[string](10, 10*time.Millisecond)

	c.Set("a", "alpha")
	c.Set("b", "beta")
	time.Sleep(20 * time.Millisecond)
	c.Set("c", "gamma")

	if cleaned := c.CleanExpired(); cleaned != 2 {
		t.Errorf("CleanExpired() = %d, want 2", cleaned)
	}
	if c.Size() != 1 {
		t.Errorf("Size() after cleanup = %d, want 1", c.Size())
	}
}

func TestLRUCache_Delete(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	c.Set("a", "alpha")
	c.Delete("a")
	if _, found := c.Get("a"); found {
		t.Error("deleted entry should not be returned")
	}

	// Deleting a missing key is a no-op
	c.Delete("missing")
}

func TestManager_SweepsRegisteredCaches(t *testing.T) {
	c := NewLRUCache[string](10, 5*time.Millisecond)
	c.Set("a", "alpha")
	c.Set("b", "beta")

	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for c.Size() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Size() = %d, want 0 after the sweep", c.Size())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
