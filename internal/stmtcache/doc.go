// Package stmtcache maps statement shapes to prepared statements so
// every distinct (operation, table, field list, shard) combination is
// prepared against its shard exactly once and reused for the rest of
// the run.
//
// # Overview
//
// A benchmark run issues the same handful of statement shapes millions
// of times. Preparing on every call would round-trip to the server and
// re-plan each time; the cache makes preparation a one-time cost per
// shape. Entries are created lazily on first use, never evicted, and
// closed together at shutdown - the shape population is tiny and fixed
// by the workload, so an eviction policy would be dead weight.
//
// # Shapes
//
// Shape is an immutable comparable value:
//
//	Shape{Op: OpRead, Table: "usertable", Fields: "age,name", Shard: 2}
//
// Fields is the comma-joined, sorted field list. Sorting happens
// upstream (see internal/sqlgen.NormalizeFields), so two calls naming
// {age, name} and {name, age} resolve to the same Shape and share one
// prepared statement instead of growing the cache with order-permuted
// duplicates.
//
// # Concurrency
//
// All methods are safe for concurrent use. The lookup path takes a
// shared read lock; misses prepare outside any lock and publish with
// an insert-if-absent step. When two callers race to publish the same
// shape, the first insert wins and the loser's freshly prepared
// statement is closed before the winner is returned, so exactly one
// statement per shape ever stays open.
//
// Sharing one Cache between several clients is supported: the cache
// never closes itself, so the supplier calls CloseAll once every
// client is done with it.
//
// # Usage Example
//
//	cache := stmtcache.New()
//	shape := stmtcache.ShapeFor(sqlgen.OpRead, "usertable", fields, idx)
//	stmt, err := cache.GetOrPrepare(ctx, shape, conn.DB(), text)
//	if err != nil {
//	    return err
//	}
//	rows, err := stmt.QueryContext(ctx, key)
//	...
//	cache.CloseAll()
package stmtcache
