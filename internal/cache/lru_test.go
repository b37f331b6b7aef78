package cache

import (
	"testing"
	"time"
)

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a becomes most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Errorf("Get(b) found an entry that should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = (%d, %v), want (1, true)", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCacheWithClock[string](10, time.Minute, clock.Now)
	c.Set("k", "v")
	c.Set("other", "w")

	clock.Advance(30 * time.Second)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Errorf("Get(k) = (%q, %v), want (v, true)", v, ok)
	}

	clock.Advance(31 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Errorf("Get(k) returned an expired entry")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCacheOverwriteAndDelete(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) = %d, want 2", v)
	}
	c.Delete("a")
	if c.Size() != 0 {
		t.Errorf("Size() after Delete = %d, want 0", c.Size())
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Stop()

	m.StartCleanup(time.Hour)
	m.Stop()
}
