// Package sqlgen builds the parameterized SQL text for every record
// operation docsql issues, translating the logical document model (read
// these fields of this key, write these field/value pairs) into
// dialect-aware statements over a two-column table: a string primary key
// and one JSON document column.
//
// # Overview
//
// The package is pure string assembly: no connections, no execution, no
// driver imports. A Builder is configured once at client startup with
// the key column, the document column, and the scan dialect, and from
// then on produces deterministic statement text for any (operation,
// table, field list) combination. Determinism matters because the text
// doubles as half of a prepared-statement cache key upstream.
//
// # Statement Shapes
//
// The five operations map to fixed SQL skeletons:
//
//	Read (all fields):
//	  SELECT key, doc FROM tbl WHERE key = ?
//
//	Read (subset):
//	  SELECT key, doc->>'$.f1' AS f1, doc->>'$.f2' AS f2
//	  FROM tbl WHERE key = ?
//
//	Scan (Generic dialect):
//	  SELECT key, ... FROM tbl WHERE key >= ? ORDER BY key LIMIT ?
//
//	Scan (LeadingLimit dialect):
//	  SELECT TOP (?) key, ... FROM tbl WHERE key >= ? ORDER BY key
//
//	Insert:
//	  INSERT INTO tbl (key, doc) VALUES (?, JSON_OBJECT('f1', ?, 'f2', ?))
//
//	Update:
//	  UPDATE tbl SET doc = JSON_SET(doc, '$.f1', ?, '$.f2', ?) WHERE key = ?
//
//	Delete:
//	  DELETE FROM tbl WHERE key = ?
//
// # Dialects
//
// Engines disagree on how a scan limits its row count. The disagreement
// is modeled as a closed two-variant type rather than per-call string
// checks:
//
//   - Generic: trailing LIMIT clause, binds (startKey, count).
//   - LeadingLimit: TOP (?) before the projection list, binds
//     (count, startKey). SQL Server family engines need this form.
//
// The variant is selected exactly once, either from explicit
// configuration or inferred from the registered driver name, and the
// bind-parameter order for scans is owned by the same type so callers
// cannot desynchronize clause position and argument position.
//
// # Field Normalization
//
// Field lists are sorted before any SQL is assembled. Two calls naming
// the same fields in different orders therefore produce identical
// statement text and share one prepared statement upstream, instead of
// growing the cache with order-permuted duplicates.
//
// # Identifier Validation
//
// Table names, column names and document field names are interpolated
// into SQL text and into quoted JSON path literals, so they are
// restricted to [A-Za-z0-9_]+. A field name carrying a quote, dollar,
// dot or space could otherwise break out of the '$.field' path literal;
// such names are rejected with an error before any SQL is built. Record
// keys and field values are never interpolated, they always travel as
// bind parameters.
//
// # Usage Example
//
//	b, err := sqlgen.NewBuilder("record_key", "record_doc", sqlgen.Generic)
//	if err != nil {
//	    return err
//	}
//
//	text, err := b.Read("usertable", []string{"name", "age"})
//	// SELECT record_key, record_doc->>'$.age' AS age,
//	//        record_doc->>'$.name' AS name
//	// FROM usertable WHERE record_key = ?
//
//	text, err = b.Scan("usertable", nil)
//	args := b.ScanArgs("user100", 50)
//	// Generic:      WHERE record_key >= ? ... LIMIT ?   args: "user100", 50
//	// LeadingLimit: SELECT TOP (?) ...                  args: 50, "user100"
//
// # See Also
//
// Related packages:
//   - internal/stmtcache: caches prepared statements keyed by the
//     shapes this package renders
//   - internal/shard: owns the connections statements are prepared on
package sqlgen
