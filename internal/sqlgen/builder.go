package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// ErrNoFields is returned when an insert or update names no fields.
// Neither JSON_OBJECT nor JSON_SET has a useful zero-pair form.
var ErrNoFields = errors.New("no fields given")

// ValidIdent reports whether a name is safe to interpolate into SQL
// text and JSON path literals. Only [A-Za-z0-9_]+ is allowed: a quote,
// dollar, dot or space in a field name could break out of the '$.name'
// path literal the builder produces.
func ValidIdent(name string) error {
	if name == "" {
		return errors.New("empty identifier")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return fmt.Errorf("invalid identifier %q", name)
		}
	}
	return nil
}

// NormalizeFields validates every field name and returns a sorted copy.
// Statement text and cache shapes both use the sorted order, so
// logically identical field sets supplied in different orders share one
// prepared statement.
func NormalizeFields(fields []string) ([]string, error) {
	out := make([]string, len(fields))
	copy(out, fields)
	for _, f := range out {
		if err := ValidIdent(f); err != nil {
			return nil, fmt.Errorf("field: %w", err)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Builder renders parameterized SQL for one key-column/doc-column pair
// and one scan dialect. It is immutable after construction and safe for
// concurrent use.
type Builder struct {
	key     string
	doc     string
	dialect Dialect
}

// NewBuilder validates the column names and returns a Builder. Column
// names obey the same identifier rule as document fields.
func NewBuilder(keyColumn, docColumn string, dialect Dialect) (*Builder, error) {
	if err := ValidIdent(keyColumn); err != nil {
		return nil, fmt.Errorf("key column: %w", err)
	}
	if err := ValidIdent(docColumn); err != nil {
		return nil, fmt.Errorf("doc column: %w", err)
	}
	return &Builder{key: keyColumn, doc: docColumn, dialect: dialect}, nil
}

// KeyColumn returns the configured primary-key column name.
func (b *Builder) KeyColumn() string { return b.key }

// DocColumn returns the configured JSON document column name.
func (b *Builder) DocColumn() string { return b.doc }

// Dialect returns the scan dialect the builder renders for.
func (b *Builder) Dialect() Dialect { return b.dialect }

// Read builds the SELECT for a single key. With no field subset the raw
// document column is selected next to the key; otherwise one JSON path
// projection per requested field, aliased to the field name. Binds:
// (key).
func (b *Builder) Read(table string, fields []string) (string, error) {
	table, fields, err := b.normalize(table, fields)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.key)
	b.writeProjection(&sb, fields)
	sb.WriteString(" FROM ")
	sb.WriteString(table)
	sb.WriteString(" WHERE ")
	sb.WriteString(b.key)
	sb.WriteString(" = ?")
	return sb.String(), nil
}

// Scan builds the range SELECT starting at a key, ordered by key
// ascending and limited to a bound row count. Clause position and bind
// order depend on the dialect; use ScanArgs to order the arguments.
func (b *Builder) Scan(table string, fields []string) (string, error) {
	table, fields, err := b.normalize(table, fields)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.dialect == LeadingLimit {
		sb.WriteString("TOP (?) ")
	}
	sb.WriteString(b.key)
	b.writeProjection(&sb, fields)
	sb.WriteString(" FROM ")
	sb.WriteString(table)
	sb.WriteString(" WHERE ")
	sb.WriteString(b.key)
	sb.WriteString(" >= ? ORDER BY ")
	sb.WriteString(b.key)
	if b.dialect != LeadingLimit {
		sb.WriteString(" LIMIT ?")
	}
	return sb.String(), nil
}

// ScanArgs orders the scan bind parameters to match the dialect's
// placeholder positions: (startKey, count) for Generic, (count,
// startKey) for LeadingLimit.
func (b *Builder) ScanArgs(startKey string, count int) []any {
	if b.dialect == LeadingLimit {
		return []any{count, startKey}
	}
	return []any{startKey, count}
}

// Insert builds the INSERT constructing the document with JSON_OBJECT
// over the sorted field list. Binds: (key, value per field in sorted
// order); use InsertArgs.
func (b *Builder) Insert(table string, fields []string) (string, error) {
	table, fields, err := b.normalize(table, fields)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", ErrNoFields
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(b.key)
	sb.WriteString(", ")
	sb.WriteString(b.doc)
	sb.WriteString(") VALUES (?, JSON_OBJECT(")
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("'")
		sb.WriteString(f)
		sb.WriteString("', ?")
	}
	sb.WriteString("))")
	return sb.String(), nil
}

// Update builds the in-place JSON_SET merge over the sorted field list,
// filtered by key equality. Binds: (value per field in sorted order,
// key); use UpdateArgs.
func (b *Builder) Update(table string, fields []string) (string, error) {
	table, fields, err := b.normalize(table, fields)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", ErrNoFields
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(table)
	sb.WriteString(" SET ")
	sb.WriteString(b.doc)
	sb.WriteString(" = JSON_SET(")
	sb.WriteString(b.doc)
	for _, f := range fields {
		sb.WriteString(", '$.")
		sb.WriteString(f)
		sb.WriteString("', ?")
	}
	sb.WriteString(") WHERE ")
	sb.WriteString(b.key)
	sb.WriteString(" = ?")
	return sb.String(), nil
}

// Delete builds the DELETE by key equality. Binds: (key).
func (b *Builder) Delete(table string) (string, error) {
	if err := ValidIdent(table); err != nil {
		return "", fmt.Errorf("table: %w", err)
	}
	return "DELETE FROM " + table + " WHERE " + b.key + " = ?", nil
}

// Build renders the statement text for any operation. Delete ignores
// the field list.
func (b *Builder) Build(op Op, table string, fields []string) (string, error) {
	switch op {
	case OpRead:
		return b.Read(table, fields)
	case OpScan:
		return b.Scan(table, fields)
	case OpInsert:
		return b.Insert(table, fields)
	case OpUpdate:
		return b.Update(table, fields)
	case OpDelete:
		return b.Delete(table)
	}
	return "", fmt.Errorf("unknown operation %v", op)
}

// normalize validates the table name and returns the sorted field list.
func (b *Builder) normalize(table string, fields []string) (string, []string, error) {
	if err := ValidIdent(table); err != nil {
		return "", nil, fmt.Errorf("table: %w", err)
	}
	fields, err := NormalizeFields(fields)
	if err != nil {
		return "", nil, err
	}
	return table, fields, nil
}

// writeProjection appends the projection list after the key column:
// the raw document column when no fields are requested, otherwise one
// aliased JSON path expression per field.
func (b *Builder) writeProjection(sb *strings.Builder, fields []string) {
	if len(fields) == 0 {
		sb.WriteString(", ")
		sb.WriteString(b.doc)
		return
	}
	for _, f := range fields {
		sb.WriteString(", ")
		sb.WriteString(b.doc)
		sb.WriteString("->>'$.")
		sb.WriteString(f)
		sb.WriteString("' AS ")
		sb.WriteString(f)
	}
}

// InsertArgs binds the key first, then each field's value in sorted
// field order, matching the placeholder layout of Builder.Insert.
func InsertArgs(key string, fields []string, values map[string]string) []any {
	args := make([]any, 0, len(fields)+1)
	args = append(args, key)
	for _, f := range fields {
		args = append(args, values[f])
	}
	return args
}

// UpdateArgs binds each field's value in sorted field order, then the
// key last, matching the placeholder layout of Builder.Update.
func UpdateArgs(key string, fields []string, values map[string]string) []any {
	args := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		args = append(args, values[f])
	}
	return append(args, key)
}
