package docsql

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ponedo/docsql/internal/sqlgen"
)

const insertUserSQL = "INSERT INTO usertable (record_key, record_doc) VALUES (?, JSON_OBJECT('v', ?))"

func TestInsertAutoCommit(t *testing.T) {
	client, mocks := newMockClient(t, "insert", 1, nil)

	query := "INSERT INTO usertable (record_key, record_doc) VALUES (?, JSON_OBJECT('age', ?, 'name', ?))"
	prep := mocks[0].ExpectPrepare(regexp.QuoteMeta(query))
	prep.ExpectExec().WithArgs("user1", "30", "alice").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ack, err := client.Insert(context.Background(), "usertable", "user1", map[string]string{
		"name": "alice",
		"age":  "30",
	})
	if err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	if ack != Applied {
		t.Errorf("Expected Applied, got %v", ack)
	}

	closeMockClient(t, client, mocks)
}

func TestInsertUnexpectedRowCount(t *testing.T) {
	client, mocks := newMockClient(t, "insertbadcount", 1, nil)

	prep := mocks[0].ExpectPrepare(regexp.QuoteMeta(insertUserSQL))
	prep.ExpectExec().WithArgs("user1", "a").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := client.Insert(context.Background(), "usertable", "user1", map[string]string{"v": "a"})
	if !errors.Is(err, ErrUnexpectedState) {
		t.Errorf("Expected ErrUnexpectedState, got %v", err)
	}

	closeMockClient(t, client, mocks)
}

func TestInsertDriverError(t *testing.T) {
	client, mocks := newMockClient(t, "insertfail", 1, nil)

	prep := mocks[0].ExpectPrepare(regexp.QuoteMeta(insertUserSQL))
	prep.ExpectExec().WithArgs("user1", "a").
		WillReturnError(errors.New("duplicate entry"))

	_, err := client.Insert(context.Background(), "usertable", "user1", map[string]string{"v": "a"})
	if err == nil {
		t.Fatal("Expected an error, got nil")
	}
	if errors.Is(err, ErrUnexpectedState) {
		t.Errorf("Driver failure should not map to ErrUnexpectedState, got %v", err)
	}

	closeMockClient(t, client, mocks)
}

func TestInsertEmptyValues(t *testing.T) {
	client, mocks := newMockClient(t, "insertempty", 1, nil)

	_, err := client.Insert(context.Background(), "usertable", "user1", nil)
	if !errors.Is(err, sqlgen.ErrNoFields) {
		t.Errorf("Expected ErrNoFields, got %v", err)
	}

	closeMockClient(t, client, mocks)
}

func TestInsertTxCommitCadence(t *testing.T) {
	client, mocks := newMockClient(t, "inserttx", 1, Properties{
		PropAutoCommit: "false",
		PropBatchSize:  "2",
	})

	// Every second row commits the shard's transaction; the leftover
	// row commits at Close.
	re := regexp.QuoteMeta(insertUserSQL)
	mocks[0].ExpectBegin()
	mocks[0].ExpectExec(re).WithArgs("k0", "a").WillReturnResult(sqlmock.NewResult(1, 1))
	mocks[0].ExpectExec(re).WithArgs("k1", "b").WillReturnResult(sqlmock.NewResult(2, 1))
	mocks[0].ExpectCommit()
	mocks[0].ExpectBegin()
	mocks[0].ExpectExec(re).WithArgs("k2", "c").WillReturnResult(sqlmock.NewResult(3, 1))
	mocks[0].ExpectCommit()
	mocks[0].ExpectClose()

	ctx := context.Background()
	for i, v := range []string{"a", "b", "c"} {
		key := []string{"k0", "k1", "k2"}[i]
		ack, err := client.Insert(ctx, "usertable", key, map[string]string{"v": v})
		if err != nil {
			t.Fatalf("Failed to insert %s: %v", key, err)
		}
		if ack != Applied {
			t.Errorf("Expected Applied for %s, got %v", key, ack)
		}
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Failed to close client: %v", err)
	}
	if err := mocks[0].ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestInsertTxCommitEveryRowWithoutBatchSize(t *testing.T) {
	client, mocks := newMockClient(t, "inserttxeach", 1, Properties{
		PropAutoCommit: "false",
	})

	re := regexp.QuoteMeta(insertUserSQL)
	for i, key := range []string{"k0", "k1"} {
		mocks[0].ExpectBegin()
		mocks[0].ExpectExec(re).WithArgs(key, "x").WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
		mocks[0].ExpectCommit()
	}

	ctx := context.Background()
	for _, key := range []string{"k0", "k1"} {
		if _, err := client.Insert(ctx, "usertable", key, map[string]string{"v": "x"}); err != nil {
			t.Fatalf("Failed to insert %s: %v", key, err)
		}
	}

	closeMockClient(t, client, mocks)
}

func TestInsertBatchFlushAtThreshold(t *testing.T) {
	client, mocks := newMockClient(t, "batchflush", 1, Properties{
		PropBatchAPI:  "true",
		PropBatchSize: "3",
	})

	// Nothing reaches the driver until the third row trips the
	// threshold; the flush prepares once and replays all three.
	prep := mocks[0].ExpectPrepare(regexp.QuoteMeta(insertUserSQL))
	prep.ExpectExec().WithArgs("k0", "a").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("k1", "b").WillReturnResult(sqlmock.NewResult(2, 1))
	prep.ExpectExec().WithArgs("k2", "c").WillReturnResult(sqlmock.NewResult(3, 1))

	ctx := context.Background()
	for i, v := range []string{"a", "b", "c"} {
		key := []string{"k0", "k1", "k2"}[i]
		ack, err := client.Insert(ctx, "usertable", key, map[string]string{"v": v})
		if err != nil {
			t.Fatalf("Failed to insert %s: %v", key, err)
		}
		want := Buffered
		if i == 2 {
			want = Applied
		}
		if ack != want {
			t.Errorf("Expected %v for row %d, got %v", want, i, ack)
		}
	}

	closeMockClient(t, client, mocks)
}

func TestInsertBatchCloseFlushesRemainder(t *testing.T) {
	client, mocks := newMockClient(t, "batchclose", 1, Properties{
		PropBatchAPI:  "true",
		PropBatchSize: "10",
	})

	prep := mocks[0].ExpectPrepare(regexp.QuoteMeta(insertUserSQL))
	prep.ExpectExec().WithArgs("k0", "a").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("k1", "b").WillReturnResult(sqlmock.NewResult(2, 1))
	mocks[0].ExpectClose()

	ctx := context.Background()
	for i, v := range []string{"a", "b"} {
		key := []string{"k0", "k1"}[i]
		ack, err := client.Insert(ctx, "usertable", key, map[string]string{"v": v})
		if err != nil {
			t.Fatalf("Failed to insert %s: %v", key, err)
		}
		if ack != Buffered {
			t.Errorf("Expected Buffered for %s, got %v", key, ack)
		}
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Failed to close client: %v", err)
	}
	if err := mocks[0].ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestInsertBatchWithoutSizeFlushesOnlyAtClose(t *testing.T) {
	client, mocks := newMockClient(t, "batchnosize", 1, Properties{
		PropBatchAPI: "true",
	})

	prep := mocks[0].ExpectPrepare(regexp.QuoteMeta(insertUserSQL))
	prep.ExpectExec().WithArgs("k0", "a").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("k1", "b").WillReturnResult(sqlmock.NewResult(2, 1))
	prep.ExpectExec().WithArgs("k2", "c").WillReturnResult(sqlmock.NewResult(3, 1))
	mocks[0].ExpectClose()

	ctx := context.Background()
	for i, v := range []string{"a", "b", "c"} {
		key := []string{"k0", "k1", "k2"}[i]
		ack, err := client.Insert(ctx, "usertable", key, map[string]string{"v": v})
		if err != nil {
			t.Fatalf("Failed to insert %s: %v", key, err)
		}
		if ack != Buffered {
			t.Errorf("Expected Buffered for %s, got %v", key, ack)
		}
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Failed to close client: %v", err)
	}
	if err := mocks[0].ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestInsertBatchFlushesTriggeringShapeOnly(t *testing.T) {
	client, mocks := newMockClient(t, "batchshape", 1, Properties{
		PropBatchAPI:  "true",
		PropBatchSize: "2",
	})

	// Two tables, one row each. The second row trips the client-wide
	// counter, flushing its own shape; the first table's row stays
	// buffered until Close.
	sqlA := regexp.QuoteMeta("INSERT INTO table_a (record_key, record_doc) VALUES (?, JSON_OBJECT('v', ?))")
	sqlB := regexp.QuoteMeta("INSERT INTO table_b (record_key, record_doc) VALUES (?, JSON_OBJECT('v', ?))")

	prepB := mocks[0].ExpectPrepare(sqlB)
	prepB.ExpectExec().WithArgs("k1", "b").WillReturnResult(sqlmock.NewResult(1, 1))
	prepA := mocks[0].ExpectPrepare(sqlA)
	prepA.ExpectExec().WithArgs("k0", "a").WillReturnResult(sqlmock.NewResult(2, 1))
	mocks[0].ExpectClose()

	ctx := context.Background()
	ack, err := client.Insert(ctx, "table_a", "k0", map[string]string{"v": "a"})
	if err != nil {
		t.Fatalf("Failed to insert into table_a: %v", err)
	}
	if ack != Buffered {
		t.Errorf("Expected Buffered for table_a, got %v", ack)
	}

	ack, err = client.Insert(ctx, "table_b", "k1", map[string]string{"v": "b"})
	if err != nil {
		t.Fatalf("Failed to insert into table_b: %v", err)
	}
	if ack != Applied {
		t.Errorf("Expected Applied for table_b, got %v", ack)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Failed to close client: %v", err)
	}
	if err := mocks[0].ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestInsertBatchRowCountRule(t *testing.T) {
	client, mocks := newMockClient(t, "batchrowrule", 1, Properties{
		PropBatchAPI:  "true",
		PropBatchSize: "2",
	})

	// A flushed row reporting anything but one affected row fails the
	// batch; the rest of the group is abandoned like a cleared driver
	// batch.
	prep := mocks[0].ExpectPrepare(regexp.QuoteMeta(insertUserSQL))
	prep.ExpectExec().WithArgs("k0", "a").WillReturnResult(sqlmock.NewResult(0, 3))
	mocks[0].ExpectClose()

	ctx := context.Background()
	if _, err := client.Insert(ctx, "usertable", "k0", map[string]string{"v": "a"}); err != nil {
		t.Fatalf("Failed to buffer first row: %v", err)
	}
	_, err := client.Insert(ctx, "usertable", "k1", map[string]string{"v": "b"})
	if !errors.Is(err, ErrUnexpectedState) {
		t.Errorf("Expected ErrUnexpectedState, got %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Failed to close client: %v", err)
	}
	if err := mocks[0].ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestInsertBatchAcceptsUnknownRowCount(t *testing.T) {
	client, mocks := newMockClient(t, "batchunknown", 1, Properties{
		PropBatchAPI:  "true",
		PropBatchSize: "2",
	})

	// Rewriting drivers cannot report per-row counts for batched
	// statements; an unavailable count passes.
	unavailable := sqlmock.NewErrorResult(errors.New("row count unavailable"))
	prep := mocks[0].ExpectPrepare(regexp.QuoteMeta(insertUserSQL))
	prep.ExpectExec().WithArgs("k0", "a").WillReturnResult(unavailable)
	prep.ExpectExec().WithArgs("k1", "b").WillReturnResult(unavailable)

	ctx := context.Background()
	if _, err := client.Insert(ctx, "usertable", "k0", map[string]string{"v": "a"}); err != nil {
		t.Fatalf("Failed to buffer first row: %v", err)
	}
	ack, err := client.Insert(ctx, "usertable", "k1", map[string]string{"v": "b"})
	if err != nil {
		t.Fatalf("Failed to flush batch: %v", err)
	}
	if ack != Applied {
		t.Errorf("Expected Applied, got %v", ack)
	}

	closeMockClient(t, client, mocks)
}

func TestInsertBatchNoAutoCommit(t *testing.T) {
	client, mocks := newMockClient(t, "batchtx", 1, Properties{
		PropBatchAPI:   "true",
		PropBatchSize:  "2",
		PropAutoCommit: "false",
	})

	// The flush wraps the buffered rows in the shard's transaction and
	// commits it at the end.
	re := regexp.QuoteMeta(insertUserSQL)
	mocks[0].ExpectBegin()
	mocks[0].ExpectExec(re).WithArgs("k0", "a").WillReturnResult(sqlmock.NewResult(1, 1))
	mocks[0].ExpectExec(re).WithArgs("k1", "b").WillReturnResult(sqlmock.NewResult(2, 1))
	mocks[0].ExpectCommit()

	ctx := context.Background()
	ack, err := client.Insert(ctx, "usertable", "k0", map[string]string{"v": "a"})
	if err != nil {
		t.Fatalf("Failed to buffer first row: %v", err)
	}
	if ack != Buffered {
		t.Errorf("Expected Buffered, got %v", ack)
	}

	ack, err = client.Insert(ctx, "usertable", "k1", map[string]string{"v": "b"})
	if err != nil {
		t.Fatalf("Failed to flush batch: %v", err)
	}
	if ack != Applied {
		t.Errorf("Expected Applied, got %v", ack)
	}

	closeMockClient(t, client, mocks)
}
