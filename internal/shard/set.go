package shard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

// Conn is one shard: an open connection pool plus the bookkeeping for
// the client-managed insert transaction used when auto-commit is off.
type Conn struct {
	db    *sql.DB
	index int

	// mu protects the insert transaction. The pool itself is
	// concurrency-safe without it.
	mu sync.Mutex
	tx *sql.Tx
}

// DB exposes the shard's pool for statement preparation and queries.
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Index returns the shard's position in the set.
func (c *Conn) Index() int {
	return c.index
}

// InsertTx returns the shard's open insert transaction, beginning one
// lazily when none is active. Clients running with auto-commit off
// execute inserts through this transaction and decide the commit
// cadence themselves.
func (c *Conn) InsertTx(ctx context.Context) (*sql.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx != nil {
		return c.tx, nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin on shard %d: %w", c.index, err)
	}
	c.tx = tx
	return tx, nil
}

// Commit commits and clears the shard's insert transaction. Calling it
// with no active transaction is a no-op, so shutdown can sweep every
// shard unconditionally.
func (c *Conn) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx == nil {
		return nil
	}
	err := c.tx.Commit()
	c.tx = nil
	if err != nil {
		return fmt.Errorf("commit on shard %d: %w", c.index, err)
	}
	return nil
}

// Set is the fixed ordered list of shard connections, one per
// configured DSN, established at startup and immutable afterwards.
// A record's shard is resolved by Router.Pick over Len().
type Set struct {
	conns []*Conn
	log   *slog.Logger
}

// SplitURLs splits the configured connection string into one DSN per
// shard. Semicolons don't appear inside the supported DSN formats, so
// they delimit the shard list. Blank entries are dropped.
func SplitURLs(urls string) []string {
	parts := strings.Split(urls, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Open establishes one connection pool per DSN in urls and pings each,
// so a dead or misconfigured shard fails startup instead of the first
// operation. Credentials are spliced into DSNs that lack them when
// user is non-empty. An unknown driver name surfaces here as well.
func Open(ctx context.Context, driver, urls, user, passwd string, log *slog.Logger) (*Set, error) {
	if log == nil {
		log = slog.Default()
	}
	dsns := SplitURLs(urls)
	if len(dsns) == 0 {
		return nil, errors.New("no shard urls configured")
	}

	s := &Set{log: log}
	for i, dsn := range dsns {
		db, err := sql.Open(driver, withCredentials(driver, dsn, user, passwd))
		if err != nil {
			s.closePools()
			return nil, fmt.Errorf("open shard %d: %w", i, err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			s.closePools()
			return nil, fmt.Errorf("ping shard %d: %w", i, err)
		}
		s.conns = append(s.conns, &Conn{db: db, index: i})
		log.Debug("added shard connection", "index", i, "driver", driver)
	}
	log.Info("shard set ready", "shards", len(s.conns), "driver", driver)
	return s, nil
}

// Len returns the number of shards in the set.
func (s *Set) Len() int {
	return len(s.conns)
}

// Conn returns the shard at index i. Indexes come from Router.Pick and
// are always in range.
func (s *Set) Conn(i int) *Conn {
	return s.conns[i]
}

// Ping verifies connectivity to every shard, returning the first
// failure tagged with its shard index.
func (s *Set) Ping(ctx context.Context) error {
	for _, c := range s.conns {
		if err := c.db.PingContext(ctx); err != nil {
			return fmt.Errorf("shard %d: %w", c.index, err)
		}
	}
	return nil
}

// Close commits any open insert transactions, then closes every pool.
// Every shard is swept even when an earlier one fails; the first error
// is returned.
func (s *Set) Close() error {
	var firstErr error
	for _, c := range s.conns {
		if err := c.Commit(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// closePools releases pools opened so far when Open fails partway.
func (s *Set) closePools() {
	for _, c := range s.conns {
		c.db.Close()
	}
}

// withCredentials splices the configured user and password into a DSN
// that does not already carry credentials. Go DSN formats differ per
// driver, so the splice is format-aware:
//
//   - URL style (postgres://..., sqlserver://...): userinfo section
//   - mysql style ([user[:pass]@][net[(addr)]]/db): prefix before the
//     network segment
//   - key/value style (host=... dbname=...): user= and password= pairs
//
// A DSN that already names a user wins over the configured values, and
// an empty configured user leaves the DSN untouched.
func withCredentials(driver, dsn, user, passwd string) string {
	if user == "" {
		return dsn
	}
	switch {
	case strings.Contains(dsn, "://"):
		u, err := url.Parse(dsn)
		if err != nil || u.User != nil {
			return dsn
		}
		if passwd == "" {
			u.User = url.User(user)
		} else {
			u.User = url.UserPassword(user, passwd)
		}
		return u.String()
	case strings.Contains(strings.ToLower(driver), "mysql"):
		if strings.Contains(dsn, "@") {
			return dsn
		}
		cred := user
		if passwd != "" {
			cred += ":" + passwd
		}
		return cred + "@" + dsn
	default:
		if strings.Contains(dsn, "user=") {
			return dsn
		}
		kv := "user=" + user
		if passwd != "" {
			kv += " password=" + passwd
		}
		if dsn == "" {
			return kv
		}
		return dsn + " " + kv
	}
}
