package cache

import (
	"testing"
	"time"
)

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = %d, %v; want 1, true", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Error("entry should have expired")
	}

	c.Set("x", "1")
	c.Set("y", "2")
	now = now.Add(2 * time.Minute)
	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired = %d, want 2", n)
	}
}

func TestLRUCache_Update(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	got := c.Update("n", func(cur int, found bool) int {
		if found {
			t.Error("first update should not find a value")
		}
		return cur + 1
	})
	if got != 1 {
		t.Errorf("first Update = %d, want 1", got)
	}

	got = c.Update("n", func(cur int, found bool) int { return cur + 1 })
	if got != 2 {
		t.Errorf("second Update = %d, want 2", got)
	}
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c := NewLRUCache[bool](10, time.Minute)
	c.Set(Key("u1", "a"), true)
	c.Set(Key("u1", "b"), true)
	c.Set(Key("u10", "a"), true)

	if n := c.DeletePrefix(UserPrefix("u1")); n != 2 {
		t.Errorf("DeletePrefix = %d, want 2", n)
	}
	if _, ok := c.Get(Key("u10", "a")); !ok {
		t.Error("u10 entries must survive deleting u1")
	}
}

func TestManager_CleanNow(t *testing.T) {
	now := time.Now()
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register(c)
	now = now.Add(time.Hour)

	if n := m.CleanNow(); n != 1 {
		t.Errorf("CleanNow = %d, want 1", n)
	}
}

func TestLRUCache_Purge(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	c.Set("t1", "u1")
	c.Set("t2", "u2")
	c.Set("t3", "u1")

	if n := c.Purge(func(v string) bool { return v == "u1" }); n != 2 {
		t.Errorf("Purge removed %d, want 2", n)
	}
	if _, ok := c.Get("t2"); !ok {
		t.Error("t2 should survive")
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}
