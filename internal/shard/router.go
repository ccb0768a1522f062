package shard

import "hash/fnv"

// Router deterministically maps record keys onto shard indexes by
// hashing. The shard count is fixed at construction, which
// matches the lifecycle of a Set: connections are established once at
// startup and never rebalanced, so a key's placement never changes
// while the set is live.
//
// Routing contract:
//   - Same key and same shard count always yield the same index
//   - Returned indexes are uniformly spread over [0, count)
//   - The empty key is a valid key and routes like any other
//
// Router is a value type with no mutable state and is safe for
// concurrent use.
type Router struct {
	count int
}

// NewRouter creates a router over a fixed number of shards. It panics
// when count < 1: the shard count always comes from the DSN list a Set
// was opened with, which contains at least one entry.
func NewRouter(count int) Router {
	if count < 1 {
		panic("shard: router requires at least one shard")
	}
	return Router{count: count}
}

// Pick returns the index of the shard owning key.
//
// The key is hashed with FNV-1a and reduced modulo the shard count.
// The reduction happens in unsigned space so indexes stay in range on
// every platform, including 32-bit ones where converting the full hash
// to int first could go negative.
func (r Router) Pick(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(r.count))
}

// Count returns the fixed shard count the router was built with.
func (r Router) Count() int {
	return r.count
}
