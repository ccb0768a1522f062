package stmtcache

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/ponedo/docsql/internal/sqlgen"
)

// Shape identifies one prepared statement: two operations with the
// same shape share one statement object. Fields holds the comma-joined
// sorted field list so the struct stays comparable and usable as a map
// key.
type Shape struct {
	Op     sqlgen.Op
	Table  string
	Fields string
	Shard  int
}

// ShapeFor builds the cache key for an operation. The field list must
// already be normalized (sorted); callers get it from
// sqlgen.NormalizeFields.
func ShapeFor(op sqlgen.Op, table string, fields []string, shard int) Shape {
	return Shape{
		Op:     op,
		Table:  table,
		Fields: strings.Join(fields, ","),
		Shard:  shard,
	}
}

// Cache maps statement shapes to prepared statements bound to shard
// pools. Entries are created lazily, never evicted, and closed
// together by CloseAll. Safe for concurrent use; several clients may
// share one cache.
type Cache struct {
	mu    sync.RWMutex // Protects stmts
	stmts map[Shape]*sql.Stmt
}

// afterPrepare runs between preparing a fresh statement and the
// publish step. The indirection lets tests force the publish race
// deterministically.
var afterPrepare = func() {}

// New creates an empty statement cache.
func New() *Cache {
	return &Cache{
		stmts: make(map[Shape]*sql.Stmt),
	}
}

// GetOrPrepare returns the statement cached for shape, preparing text
// against db and publishing the result on a miss. Concurrent callers
// racing on the same shape are safe: the first publish wins, and the
// loser's statement is closed before the winner is returned, so
// exactly one statement per shape stays open.
func (c *Cache) GetOrPrepare(ctx context.Context, shape Shape, db *sql.DB, text string) (*sql.Stmt, error) {
	c.mu.RLock()
	stmt, ok := c.stmts[shape]
	c.mu.RUnlock()
	if ok {
		return stmt, nil
	}

	// Prepare outside the lock; statement preparation is a network
	// round trip.
	fresh, err := db.PrepareContext(ctx, text)
	if err != nil {
		return nil, err
	}
	afterPrepare()

	c.mu.Lock()
	if winner, ok := c.stmts[shape]; ok {
		c.mu.Unlock()
		// Lost the publish race; only the winner may stay open.
		fresh.Close()
		return winner, nil
	}
	c.stmts[shape] = fresh
	c.mu.Unlock()
	return fresh, nil
}

// Len returns the number of cached statements.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stmts)
}

// CloseAll closes every cached statement and empties the cache. Every
// statement is closed even when an earlier close fails; the first
// error is returned.
func (c *Cache) CloseAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for shape, stmt := range c.stmts {
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.stmts, shape)
	}
	return firstErr
}
