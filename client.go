package docsql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ponedo/docsql/internal/shard"
	"github.com/ponedo/docsql/internal/sqlgen"
	"github.com/ponedo/docsql/internal/stmtcache"
)

// DB is the harness-facing contract: five record operations plus
// lifecycle. Client is the sharded SQL implementation; tests and
// adapters may substitute their own.
type DB interface {
	// Init opens the configured shards and prepares the client for
	// operations. Calling it again on a live client is a no-op.
	Init(ctx context.Context) error

	// Read fetches one record by key. An empty fields slice reads the
	// whole document; otherwise only the named fields are returned.
	Read(ctx context.Context, table, key string, fields []string) (map[string]string, error)

	// Scan fetches up to count records in ascending key order starting
	// at startKey, from the shard startKey routes to.
	Scan(ctx context.Context, table, startKey string, count int, fields []string) ([]map[string]string, error)

	// Insert stores a new record. The returned Ack reports whether the
	// row executed or was buffered by the batch API.
	Insert(ctx context.Context, table, key string, values map[string]string) (Ack, error)

	// Update overwrites the named fields of an existing record,
	// leaving the rest of its document intact.
	Update(ctx context.Context, table, key string, values map[string]string) error

	// Delete removes one record by key.
	Delete(ctx context.Context, table, key string) error

	// Close flushes buffered inserts, commits pending transactions,
	// and releases statements and connections.
	Close() error
}

// Config assembles a Client. Props is required; zero-value fields get
// defaults.
type Config struct {
	// Props supplies the db.* configuration keys.
	Props Properties

	// Log receives structured client logs. Defaults to slog.Default().
	Log *slog.Logger

	// Cache overrides the prepared-statement cache, letting several
	// clients share one. When supplied, the supplier owns its shutdown
	// and calls CloseAll itself; a client only closes a cache it
	// created privately.
	Cache *stmtcache.Cache
}

// Client maps the five record operations onto sharded relational
// engines that store each record as a JSON document in a single
// column. One Client is meant to be driven by one goroutine, the way a
// harness drives one client per worker; only the statement cache is
// safe to share across clients.
type Client struct {
	log   *slog.Logger
	props Properties

	driver     string
	urls       string
	user       string
	passwd     string
	batchSize  int
	fetchSize  int
	autoCommit bool
	batchAPI   bool

	builder  *sqlgen.Builder
	cache    *stmtcache.Cache
	ownCache bool

	mu          sync.Mutex
	set         *shard.Set
	router      shard.Router
	initialized bool
	closed      bool

	// Batch API state: one buffer per statement shape, plus the
	// client-wide row counter that drives flush and commit cadence.
	buffers     map[stmtcache.Shape]*batchBuffer
	rowsInBatch int64
}

var _ DB = (*Client)(nil)

// New validates the configuration and builds a Client. The shards are
// not opened until Init. Malformed properties, an unknown dialect
// name, or invalid column identifiers fail here so a misconfigured run
// dies before it touches a database.
func New(cfg Config) (*Client, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	props := cfg.Props
	if props == nil {
		props = Properties{}
	}

	driver := props.GetString(PropDriver, "")
	if driver == "" {
		return nil, fmt.Errorf("property %s is required", PropDriver)
	}

	batchSize, err := props.GetInt(PropBatchSize)
	if err != nil {
		return nil, err
	}
	fetchSize, err := props.GetInt(PropFetchSize)
	if err != nil {
		return nil, err
	}

	dialect := sqlgen.DialectForDriver(driver)
	if name := props.GetString(PropDialect, ""); name != "" {
		dialect, err = sqlgen.ParseDialect(name)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", PropDialect, err)
		}
	}

	builder, err := sqlgen.NewBuilder(
		props.GetString(PropKeyColumn, DefaultKeyColumn),
		props.GetString(PropDocColumn, DefaultDocColumn),
		dialect,
	)
	if err != nil {
		return nil, err
	}

	cache := cfg.Cache
	ownCache := false
	if cache == nil {
		cache = stmtcache.New()
		ownCache = true
	}

	return &Client{
		log:        log,
		props:      props,
		driver:     driver,
		urls:       props.GetString(PropURL, ""),
		user:       props.GetString(PropUser, ""),
		passwd:     props.GetString(PropPasswd, ""),
		batchSize:  batchSize,
		fetchSize:  fetchSize,
		autoCommit: props.GetBool(PropAutoCommit, true),
		batchAPI:   props.GetBool(PropBatchAPI, false),
		builder:    builder,
		cache:      cache,
		ownCache:   ownCache,
		buffers:    make(map[stmtcache.Shape]*batchBuffer),
	}, nil
}

// Init opens one connection pool per DSN in db.url and verifies each
// with a ping. A second Init on a live client logs a warning and
// returns nil, so harnesses that init every worker thread against a
// shared client stay safe.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.initialized {
		c.log.Warn("client already initialized, ignoring")
		return nil
	}

	set, err := shard.Open(ctx, c.driver, c.urls, c.user, c.passwd, c.log)
	if err != nil {
		return fmt.Errorf("opening shards: %w", err)
	}
	c.set = set
	c.router = shard.NewRouter(set.Len())
	c.initialized = true

	c.log.Info("client initialized",
		"driver", c.driver,
		"shards", set.Len(),
		"dialect", c.builder.Dialect().String(),
		"batch_size", c.batchSize,
		"auto_commit", c.autoCommit,
		"batch_api", c.batchAPI)
	return nil
}

// ready gates every record operation on lifecycle state.
func (c *Client) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !c.initialized {
		return ErrNotInitialized
	}
	return nil
}

// prepared resolves the cached statement for one operation shape,
// preparing it on the shard's pool on first use.
func (c *Client) prepared(ctx context.Context, op sqlgen.Op, table string, fields []string, idx int, text string) (*sql.Stmt, error) {
	shape := stmtcache.ShapeFor(op, table, fields, idx)
	return c.cache.GetOrPrepare(ctx, shape, c.set.Conn(idx).DB(), text)
}

// Read fetches one record by key from the shard the key routes to.
// With no field subset the stored document is decoded into one map
// entry per field; with a subset only the named fields are returned,
// absent fields as empty strings.
func (c *Client) Read(ctx context.Context, table, key string, fields []string) (map[string]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	fields, err := sqlgen.NormalizeFields(fields)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	text, err := c.builder.Read(table, fields)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	idx := c.router.Pick(key)
	stmt, err := c.prepared(ctx, sqlgen.OpRead, table, fields, idx, text)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	rows, err := stmt.QueryContext(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		return nil, fmt.Errorf("read %s key %q: %w", table, key, ErrNotFound)
	}
	record, err := scanRecord(rows, len(fields) == 0)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return record, nil
}

// Scan fetches up to count records in ascending key order starting at
// startKey. Only the shard startKey routes to is visited; records on
// other shards are out of range for this call. Zero matching rows is
// an empty result, not an error.
func (c *Client) Scan(ctx context.Context, table, startKey string, count int, fields []string) ([]map[string]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("scan %s: count must be positive, got %d", table, count)
	}

	fields, err := sqlgen.NormalizeFields(fields)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	text, err := c.builder.Scan(table, fields)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}

	idx := c.router.Pick(startKey)
	stmt, err := c.prepared(ctx, sqlgen.OpScan, table, fields, idx, text)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}

	rows, err := stmt.QueryContext(ctx, c.builder.ScanArgs(startKey, count)...)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	defer rows.Close()

	capacity := count
	if c.fetchSize > 0 && c.fetchSize < capacity {
		capacity = c.fetchSize
	}
	records := make([]map[string]string, 0, capacity)
	for len(records) < count && rows.Next() {
		record, err := scanRecord(rows, len(fields) == 0)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return records, nil
}

// Update overwrites the named document fields of one record. The
// engine's JSON set function patches the stored document in place, so
// fields not named keep their values.
func (c *Client) Update(ctx context.Context, table, key string, values map[string]string) error {
	if err := c.ready(); err != nil {
		return err
	}

	fields, err := sqlgen.NormalizeFields(fieldNames(values))
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	text, err := c.builder.Update(table, fields)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}

	idx := c.router.Pick(key)
	stmt, err := c.prepared(ctx, sqlgen.OpUpdate, table, fields, idx, text)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}

	res, err := stmt.ExecContext(ctx, sqlgen.UpdateArgs(key, fields, values)...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return c.expectOneRow("update", table, key, res)
}

// Delete removes one record by key. Deleting a key that does not exist
// reports ErrUnexpectedState, since the statement succeeded but
// touched nothing.
func (c *Client) Delete(ctx context.Context, table, key string) error {
	if err := c.ready(); err != nil {
		return err
	}

	text, err := c.builder.Delete(table)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}

	idx := c.router.Pick(key)
	stmt, err := c.prepared(ctx, sqlgen.OpDelete, table, nil, idx, text)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}

	res, err := stmt.ExecContext(ctx, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return c.expectOneRow("delete", table, key, res)
}

// Close flushes every buffered insert batch, closes a privately owned
// statement cache, commits pending insert transactions, and closes the
// shard pools. Close is idempotent; the first call does the work and
// reports the first error it hit while still sweeping everything else.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	initialized := c.initialized
	pending := make(map[stmtcache.Shape]*batchBuffer, len(c.buffers))
	for shape, buf := range c.buffers {
		pending[shape] = buf
	}
	c.mu.Unlock()

	if !initialized {
		return nil
	}

	ctx := context.Background()
	var firstErr error
	for shape, buf := range pending {
		if err := c.flushShape(ctx, shape, buf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.ownCache {
		if err := c.cache.CloseAll(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.set.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	c.log.Info("client closed")
	return firstErr
}

// expectOneRow maps an exec result onto the operation outcome: exactly
// one affected row is success, any other count is an unexpected state
// distinct from a driver error.
func (c *Client) expectOneRow(op, table, key string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, table, err)
	}
	if n != 1 {
		c.log.Warn("unexpected affected row count",
			"op", op, "table", table, "key", key, "rows", n)
		return fmt.Errorf("%s %s key %q affected %d rows: %w", op, table, key, n, ErrUnexpectedState)
	}
	return nil
}

// scanRecord maps the current row into a field map. With no field
// subset the second column holds the raw document, decoded into one
// entry per document field; otherwise every column after the leading
// key column is a projected field, NULL projections becoming empty
// strings.
func scanRecord(rows *sql.Rows, allFields bool) (map[string]string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	if allFields {
		record := make(map[string]string)
		if len(cols) > 1 && vals[1].Valid {
			if err := json.Unmarshal([]byte(vals[1].String), &record); err != nil {
				return nil, fmt.Errorf("decoding document: %w", err)
			}
		}
		return record, nil
	}

	record := make(map[string]string, len(cols)-1)
	for i := 1; i < len(cols); i++ {
		record[cols[i]] = vals[i].String
	}
	return record, nil
}

// fieldNames collects the keys of a value map in whatever order the
// map yields them. Callers normalize before building SQL.
func fieldNames(values map[string]string) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	return names
}
