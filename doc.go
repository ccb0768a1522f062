// Package docsql maps a fixed record workload onto relational engines
// that store each record as a JSON document in a single column.
//
// # Overview
//
// A record is a string key plus a flat map of string fields. On disk
// it occupies one row of a two-column table: the key column holds the
// primary key, the document column holds the fields serialized as one
// JSON object. The five operations every workload is built from are:
//
//	Read    fetch one record by key, whole or a field subset
//	Scan    fetch up to N records in ascending key order
//	Insert  store a new record
//	Update  overwrite named fields of an existing record
//	Delete  remove one record by key
//
// The same client drives any engine with a database/sql driver and a
// MySQL-style JSON function set; the scan dialect is the only SQL
// shape that varies by engine.
//
// # Architecture
//
//	                      +-------------------+
//	       operations --> |      Client       |
//	                      |  (one per worker) |
//	                      +---------+---------+
//	                                |
//	              +-----------------+------------------+
//	              |                 |                  |
//	      +-------v------+  +-------v-------+  +-------v-------+
//	      | shard.Router |  | sqlgen.Builder|  | stmtcache.    |
//	      | key -> shard |  | shape -> SQL  |  | Cache         |
//	      +-------+------+  +---------------+  | (shareable)   |
//	              |                            +-------+-------+
//	              |                                    |
//	      +-------v------------------------------------v-------+
//	      |                    shard.Set                       |
//	      |   one *sql.DB pool per DSN in the db.url list      |
//	      +----------------------------------------------------+
//
// Every key deterministically routes to one shard. SQL text depends
// only on the operation, table, and sorted field list, so each
// distinct statement shape is prepared once per shard and reused for
// the rest of the run.
//
// # Configuration
//
// The client is configured through a flat Properties map:
//
//	db.driver      database/sql driver name (required)
//	db.url         DSN, or several DSNs joined by ';' for one shard each
//	db.user        user spliced into DSNs lacking credentials
//	db.passwd      password spliced into DSNs lacking credentials
//	db.batchsize   insert batch threshold and commit cadence
//	db.fetchsize   expected scan result size hint
//	db.autocommit  per-statement commits (default true)
//	db.batchapi    buffer inserts client-side (default false)
//	db.dialect     scan dialect override: generic or leadinglimit
//	db.keycolumn   key column name (default record_key)
//	db.doccolumn   document column name (default record_doc)
//
// Malformed numeric properties fail New so a misconfigured run dies
// before it touches a database.
//
// # Operation Outcomes
//
// Errors fall into three classes. A missing row on Read is
// ErrNotFound. A statement that executed but affected an unexpected
// number of rows, like deleting a key that is not there, wraps
// ErrUnexpectedState. Everything else is an infrastructure fault
// carried through from the driver. A scan that matches nothing is an
// empty result, not an error.
//
// # Insert Batching
//
// With db.batchapi enabled, inserted rows are buffered per statement
// shape and a client-wide row counter flushes the triggering shape
// whenever it reaches a multiple of db.batchsize. Insert returns
// Buffered for queued rows; they execute at the next flush or at
// Close, which drains every remaining buffer. With db.autocommit off
// the client owns the insert transaction per shard and commits on the
// same cadence.
//
// # Concurrency
//
// A Client serves one goroutine at a time, the way a harness gives
// each worker its own client. The statement cache is the exception:
// it is safe to share, so workers hitting the same shards reuse one
// another's prepared statements. Pass a common cache through
// Config.Cache to opt in; the supplier then owns its shutdown.
//
// # Example
//
//	props := docsql.Properties{
//		"db.driver":    "mysql",
//		"db.url":       "tcp(db0:3306)/bench;tcp(db1:3306)/bench",
//		"db.user":      "bench",
//		"db.passwd":    "secret",
//		"db.batchsize": "100",
//		"db.batchapi":  "true",
//	}
//	client, err := docsql.New(docsql.Config{Props: props})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := client.Init(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	ack, err := client.Insert(ctx, "usertable", "user1", map[string]string{
//		"name": "alice",
//		"age":  "30",
//	})
//
// # See Also
//
// Packages internal/sqlgen, internal/shard, internal/stmtcache, and
// internal/health implement the pieces; cmd/dbping wraps the client
// in a connectivity probe.
package docsql
