package sqlgen

import (
	"fmt"
	"strings"
)

// Op identifies one of the five record operations a statement serves.
// It is part of the statement-shape cache key upstream, so values are
// stable and comparable.
type Op int

const (
	OpRead Op = iota
	OpScan
	OpInsert
	OpUpdate
	OpDelete
)

// String returns the lowercase operation name, used in log attributes
// and error messages.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpScan:
		return "scan"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Dialect selects how a scan statement limits its row count. It is a
// closed variant type chosen once at startup; statement builders never
// inspect driver names themselves.
type Dialect int

const (
	// Generic appends a trailing LIMIT clause after ORDER BY and binds
	// the start key before the row count. MySQL, MariaDB, PostgreSQL
	// and SQLite all accept this form.
	Generic Dialect = iota

	// LeadingLimit emits a TOP (?) clause before the projection list
	// and binds the row count before the start key, for engines with
	// no trailing LIMIT clause (the SQL Server family).
	LeadingLimit
)

// String returns the configuration name of the dialect.
func (d Dialect) String() string {
	if d == LeadingLimit {
		return "leadinglimit"
	}
	return "generic"
}

// ParseDialect maps an explicit configuration value to a Dialect.
// An unrecognized name is a configuration error, not a silent default.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "generic":
		return Generic, nil
	case "leadinglimit", "leading-limit":
		return LeadingLimit, nil
	}
	return Generic, fmt.Errorf("unknown sql dialect %q", name)
}

// DialectForDriver infers the scan dialect from a database/sql driver
// name when no explicit dialect is configured. SQL Server drivers
// register as "sqlserver" or "mssql"; every other engine gets Generic.
func DialectForDriver(driver string) Dialect {
	name := strings.ToLower(driver)
	if strings.Contains(name, "sqlserver") || strings.Contains(name, "mssql") {
		return LeadingLimit
	}
	return Generic
}
