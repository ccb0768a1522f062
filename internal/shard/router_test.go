package shard

import (
	"fmt"
	"testing"
)

// TestRouterDeterminism tests that a key always routes to the same shard
func TestRouterDeterminism(t *testing.T) {
	r := NewRouter(5)

	keys := []string{"", "user1", "user2", "a very long key with spaces and $ymbols", "user1"}
	for _, key := range keys {
		first := r.Pick(key)
		for i := 0; i < 10; i++ {
			if got := r.Pick(key); got != first {
				t.Errorf("Expected stable index %d for key %q, got %d", first, key, got)
			}
		}
	}
}

// TestRouterRange tests that every index stays within [0, count)
func TestRouterRange(t *testing.T) {
	for count := 1; count <= 16; count++ {
		t.Run(fmt.Sprintf("%d shards", count), func(t *testing.T) {
			r := NewRouter(count)
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("user%d", i)
				idx := r.Pick(key)
				if idx < 0 || idx >= count {
					t.Fatalf("Expected index in [0, %d) for key %q, got %d", count, key, idx)
				}
			}
		})
	}
}

// TestRouterSingleShard tests that one shard receives everything
func TestRouterSingleShard(t *testing.T) {
	r := NewRouter(1)
	for i := 0; i < 50; i++ {
		if idx := r.Pick(fmt.Sprintf("key%d", i)); idx != 0 {
			t.Errorf("Expected index 0 with a single shard, got %d", idx)
		}
	}
}

// TestRouterSpread tests that keys reach every shard eventually
func TestRouterSpread(t *testing.T) {
	const count = 4
	r := NewRouter(count)

	hit := make(map[int]int)
	for i := 0; i < 400; i++ {
		hit[r.Pick(fmt.Sprintf("user%d", i))]++
	}

	for idx := 0; idx < count; idx++ {
		if hit[idx] == 0 {
			t.Errorf("Expected shard %d to receive keys, got none (distribution: %v)", idx, hit)
		}
	}
}

// TestRouterCount tests the count accessor and invalid construction
func TestRouterCount(t *testing.T) {
	if got := NewRouter(3).Count(); got != 3 {
		t.Errorf("Expected count 3, got %d", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for zero shard count")
		}
	}()
	NewRouter(0)
}
