package model

import (
	"fmt"
	"strings"
)

// Record is one input row: ordered column names with their values.
// Column lookup is case-insensitive because drivers differ in the case they report.
type Record struct {
	columns []string
	values  map[string]interface{}
}

// NewRecord creates an empty Record.
func NewRecord() *Record {
	return &Record{values: make(map[string]interface{})}
}

// Set stores value under column. Setting an existing column keeps its original position.
// []byte values are stored as string.
func (r *Record) Set(column string, value interface{}) {
	key := strings.ToLower(column)
	if _, exists := r.values[key]; !exists {
		r.columns = append(r.columns, column)
	}
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	r.values[key] = value
}

// Get returns the value of column.
func (r *Record) Get(column string) (interface{}, bool) {
	v, ok := r.values[strings.ToLower(column)]
	return v, ok
}

// GetString returns the value of column formatted as a string, or "" if absent or NULL.
func (r *Record) GetString(column string) string {
	v, ok := r.Get(column)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// GetInt64 returns the value of column as an int64.
func (r *Record) GetInt64(column string) (int64, bool) {
	v, ok := r.Get(column)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		var parsed int64
		if _, err := fmt.Sscan(n, &parsed); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// Columns returns the column names in fetch order.
func (r *Record) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Len returns the number of columns.
func (r *Record) Len() int {
	return len(r.columns)
}

// String renders the record as {col=value, ...}.
func (r *Record) String() string {
	parts := make([]string, 0, len(r.columns))
	for _, c := range r.columns {
		parts = append(parts, fmt.Sprintf("%s=%v", c, r.values[strings.ToLower(c)]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// RecordIdentity is the composite identity of a record: the values of its key columns.
type RecordIdentity struct {
	keys   []string
	values []interface{}
	key    string
}

// IdentityOf builds the identity of r from keyColumns.
// It returns the name of the first key column missing from r when the identity cannot be built.
func IdentityOf(r *Record, keyColumns []string) (RecordIdentity, string, bool) {
	id := RecordIdentity{
		keys:   make([]string, 0, len(keyColumns)),
		values: make([]interface{}, 0, len(keyColumns)),
	}
	parts := make([]string, 0, len(keyColumns))
	for _, k := range keyColumns {
		v, ok := r.Get(k)
		if !ok {
			return RecordIdentity{}, k, false
		}
		id.keys = append(id.keys, k)
		id.values = append(id.values, v)
		// The value's type is part of the key so that 1 and "1" stay distinct.
		parts = append(parts, fmt.Sprintf("%s=%T:%v", strings.ToLower(k), v, v))
	}
	id.key = strings.Join(parts, "\x1f")
	return id, "", true
}

// Key returns a comparable form of the identity.
func (id RecordIdentity) Key() string {
	return id.key
}

// IsZero reports whether the identity is empty.
func (id RecordIdentity) IsZero() bool {
	return id.key == ""
}

// String renders the identity as {key=value, ...}.
func (id RecordIdentity) String() string {
	parts := make([]string, 0, len(id.keys))
	for i, k := range id.keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, id.values[i]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
