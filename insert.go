package docsql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ponedo/docsql/internal/shard"
	"github.com/ponedo/docsql/internal/sqlgen"
	"github.com/ponedo/docsql/internal/stmtcache"
)

// Ack reports what happened to an inserted row.
type Ack int

const (
	// Applied means the row, and at a flush boundary the whole group
	// buffered for its statement shape, executed against its shard.
	Applied Ack = iota

	// Buffered means the row was queued client-side by the batch API
	// and will execute at the next flush or at Close.
	Buffered
)

// String returns the lowercase name of the acknowledgement.
func (a Ack) String() string {
	if a == Buffered {
		return "buffered"
	}
	return "applied"
}

// batchBuffer accumulates the argument rows for one statement shape
// until the flush threshold trips. Each shape buffers independently,
// the way drivers batch rows per prepared statement.
type batchBuffer struct {
	conn *shard.Conn
	text string
	rows [][]any
}

// Insert stores a new record as a JSON document built from values.
//
// Three modes, chosen by configuration:
//
//   - default: the row executes immediately through the cached
//     prepared statement and commits on its own.
//   - db.autocommit=false: the row joins the shard's client-managed
//     transaction, committed every db.batchsize rows (every row when
//     no batch size is set).
//   - db.batchapi=true: the row is buffered per statement shape and
//     the triggering shape flushes when the client-wide row counter
//     reaches a multiple of db.batchsize. Rows buffered for other
//     shapes stay put until their own flush or Close.
func (c *Client) Insert(ctx context.Context, table, key string, values map[string]string) (Ack, error) {
	if err := c.ready(); err != nil {
		return Applied, err
	}

	fields, err := sqlgen.NormalizeFields(fieldNames(values))
	if err != nil {
		return Applied, fmt.Errorf("insert %s: %w", table, err)
	}
	text, err := c.builder.Insert(table, fields)
	if err != nil {
		return Applied, fmt.Errorf("insert %s: %w", table, err)
	}
	args := sqlgen.InsertArgs(key, fields, values)
	idx := c.router.Pick(key)

	if c.batchAPI {
		return c.insertBatched(ctx, table, fields, idx, text, args)
	}
	return Applied, c.insertDirect(ctx, table, key, fields, idx, text, args)
}

// insertDirect executes one row immediately. With auto-commit off the
// row runs inside the shard's insert transaction and the client-wide
// row counter decides when to commit.
func (c *Client) insertDirect(ctx context.Context, table, key string, fields []string, idx int, text string, args []any) error {
	if c.autoCommit {
		stmt, err := c.prepared(ctx, sqlgen.OpInsert, table, fields, idx, text)
		if err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
		return c.expectOneRow("insert", table, key, res)
	}

	conn := c.set.Conn(idx)
	tx, err := conn.InsertTx(ctx)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	res, err := tx.ExecContext(ctx, text, args...)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	if err := c.expectOneRow("insert", table, key, res); err != nil {
		return err
	}

	c.mu.Lock()
	c.rowsInBatch++
	commitNow := c.batchSize <= 0 || c.rowsInBatch%int64(c.batchSize) == 0
	c.mu.Unlock()
	if commitNow {
		if err := conn.Commit(); err != nil {
			return fmt.Errorf("insert %s: commit: %w", table, err)
		}
	}
	return nil
}

// insertBatched queues the row for its shape and flushes that shape
// when the counter trips the threshold. Without a positive batch size
// nothing ever trips and every row waits for Close.
func (c *Client) insertBatched(ctx context.Context, table string, fields []string, idx int, text string, args []any) (Ack, error) {
	shape := stmtcache.ShapeFor(sqlgen.OpInsert, table, fields, idx)

	c.mu.Lock()
	buf, ok := c.buffers[shape]
	if !ok {
		buf = &batchBuffer{conn: c.set.Conn(idx), text: text}
		c.buffers[shape] = buf
	}
	buf.rows = append(buf.rows, args)
	flushNow := false
	if c.batchSize > 0 {
		c.rowsInBatch++
		flushNow = c.rowsInBatch%int64(c.batchSize) == 0
	}
	c.mu.Unlock()

	if !flushNow {
		return Buffered, nil
	}
	if err := c.flushShape(ctx, shape, buf); err != nil {
		return Applied, err
	}
	return Applied, nil
}

// flushShape executes every row buffered for one shape. With
// auto-commit on the rows run through the cached prepared statement;
// off, they run inside the shard's insert transaction and the flush
// commits it. A failed row abandons the rest of this shape's group,
// matching driver batch semantics where a failed batch is cleared.
func (c *Client) flushShape(ctx context.Context, shape stmtcache.Shape, buf *batchBuffer) error {
	c.mu.Lock()
	rows := buf.rows
	buf.rows = nil
	c.mu.Unlock()
	if len(rows) == 0 {
		return nil
	}

	if c.autoCommit {
		stmt, err := c.cache.GetOrPrepare(ctx, shape, buf.conn.DB(), buf.text)
		if err != nil {
			return fmt.Errorf("insert %s: %w", shape.Table, err)
		}
		for _, args := range rows {
			res, err := stmt.ExecContext(ctx, args...)
			if err != nil {
				return fmt.Errorf("insert %s: %w", shape.Table, err)
			}
			if err := c.checkBatchRow(shape.Table, res); err != nil {
				return err
			}
		}
		c.log.Debug("flushed insert batch",
			"table", shape.Table, "shard", shape.Shard, "rows", len(rows))
		return nil
	}

	tx, err := buf.conn.InsertTx(ctx)
	if err != nil {
		return fmt.Errorf("insert %s: %w", shape.Table, err)
	}
	for _, args := range rows {
		res, err := tx.ExecContext(ctx, buf.text, args...)
		if err != nil {
			return fmt.Errorf("insert %s: %w", shape.Table, err)
		}
		if err := c.checkBatchRow(shape.Table, res); err != nil {
			return err
		}
	}
	if err := buf.conn.Commit(); err != nil {
		return fmt.Errorf("insert %s: commit: %w", shape.Table, err)
	}
	c.log.Debug("flushed insert batch",
		"table", shape.Table, "shard", shape.Shard, "rows", len(rows))
	return nil
}

// checkBatchRow applies the per-row acceptance rule for batched
// inserts: exactly one affected row, or a driver that cannot report
// per-row counts for batched statements. Any other count is an
// integrity signal.
func (c *Client) checkBatchRow(table string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 1 || n < 0 {
		return nil
	}
	c.log.Warn("unexpected affected row count in batch", "table", table, "rows", n)
	return fmt.Errorf("insert %s batch row affected %d rows: %w", table, n, ErrUnexpectedState)
}
