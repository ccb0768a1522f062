// Package shard routes record keys onto a fixed set of database
// connections, one pool per configured DSN.
//
// # Overview
//
// A sharded deployment lists several DSNs in one connection string,
// separated by semicolons. Each DSN becomes one shard: an independent
// *sql.DB pool identified by its position in the list. Keys map to
// shards by hash, so a record always lives on the same shard for the
// lifetime of the set.
//
// The package has two halves:
//
//   - Router: pure key-to-index arithmetic, no I/O
//   - Set / Conn: the open pools, their startup pings, and the
//     client-managed insert transactions
//
// # Routing
//
// Router.Pick hashes the key with FNV-1a and reduces it modulo the
// shard count:
//
//	index := fnv1a(key) % count
//
// The reduction happens in unsigned space, so the index is always in
// range. Routing is stable: the shard count is fixed when the set is
// opened and never changes while it is live. There is no rebalancing,
// no virtual nodes, and no replication; a shard list of length one
// degenerates to every key on shard zero.
//
// # Connection Sets
//
// Open splits the DSN list, opens one pool per entry, and pings each
// before returning. A dead shard fails startup instead of the first
// operation that happens to route to it. Configured credentials are
// spliced into DSNs that do not carry their own; the splice is aware
// of URL-style, mysql-style, and key/value DSN formats.
//
// Each Conn also carries the client-managed insert transaction used
// when auto-commit is off. InsertTx begins one lazily; Commit commits
// and clears it, and is a no-op with none active so shutdown can
// sweep every shard unconditionally.
//
// # Concurrency
//
// Router is a value with no mutable state. Set is immutable after
// Open. The pools are concurrency-safe on their own; the insert
// transaction on each Conn is guarded by a mutex, though the expected
// caller is a single-goroutine client.
//
// # Usage Example
//
//	set, err := shard.Open(ctx, "mysql",
//		"tcp(db0:3306)/bench;tcp(db1:3306)/bench",
//		"bench", "secret", logger)
//	if err != nil {
//		return err
//	}
//	defer set.Close()
//
//	router := shard.NewRouter(set.Len())
//	conn := set.Conn(router.Pick("user42"))
//	rows, err := conn.DB().QueryContext(ctx, query, "user42")
package shard
