package docsql

import (
	"fmt"
	"strconv"
)

// Property keys understood by the client. How the map is loaded (file,
// flags, environment) is the caller's concern; the client only reads
// the resolved values.
const (
	// PropDriver names the database/sql driver to open. Required.
	PropDriver = "db.driver"

	// PropURL is the connection DSN. Several DSNs joined by ';' open
	// one shard each.
	PropURL = "db.url"

	// PropUser and PropPasswd are spliced into DSNs that do not carry
	// credentials of their own.
	PropUser   = "db.user"
	PropPasswd = "db.passwd"

	// PropBatchSize sets the insert batching threshold and, with
	// auto-commit off, the commit cadence. Unset or non-positive means
	// no threshold.
	PropBatchSize = "db.batchsize"

	// PropFetchSize hints the expected scan result size.
	PropFetchSize = "db.fetchsize"

	// PropAutoCommit toggles per-statement commits. Off means the
	// client manages insert transactions itself. Defaults to true.
	PropAutoCommit = "db.autocommit"

	// PropBatchAPI buffers inserts client-side per statement shape and
	// flushes them in groups. Defaults to false.
	PropBatchAPI = "db.batchapi"

	// PropDialect overrides the scan dialect inferred from the driver
	// name: "generic" or "leadinglimit".
	PropDialect = "db.dialect"

	// PropKeyColumn and PropDocColumn override the two column names of
	// the record table.
	PropKeyColumn = "db.keycolumn"
	PropDocColumn = "db.doccolumn"
)

// Default column names for the record table.
const (
	DefaultKeyColumn = "record_key"
	DefaultDocColumn = "record_doc"
)

// Properties carries the client configuration as a flat string map,
// the shape benchmark harnesses produce from property files and
// command-line overrides.
type Properties map[string]string

// GetString returns the value for key, or def when key is unset or
// empty.
func (p Properties) GetString(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

// GetInt returns the integer value for key, or -1 when key is unset.
// A value that is present but unparsable is a configuration error and
// must abort startup rather than be silently defaulted.
func (p Properties) GetInt(key string) (int, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("property %s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

// GetBool returns the boolean value for key, or def when key is unset.
// A value that is present but unparsable counts as false, not as an
// error.
func (p Properties) GetBool(key string, def bool) bool {
	v, ok := p[key]
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}
