// Package record defines the input and output rows that flow through a reconciler.
package record

import (
	"strings"
)

// Entry is one input row to be enriched. Entries are read-only once built.
type Entry struct {
	// Line is the 1-based position of the row in its source, used in diagnostics.
	Line int

	// Fields maps column name to raw cell value.
	Fields map[string]string
}

// NewEntry creates an entry from a line number and a column mapping.
// The mapping is copied so later changes by the caller are not observed.
func NewEntry(line int, fields map[string]string) Entry {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Entry{Line: line, Fields: copied}
}

// Get returns the value of a column, or "" when the column is absent.
func (e Entry) Get(column string) string {
	if column == "" {
		return ""
	}
	return e.Fields[column]
}

// Value returns the trimmed value of a column.
func (e Entry) Value(column string) string {
	return strings.TrimSpace(e.Get(column))
}

// Row is one enriched output row. Keys always match the producing module's Schema.
type Row map[string]any

// Schema is the ordered list of output columns a module declares.
type Schema []string

// Conform builds a Row containing exactly the schema's columns.
// Columns missing from values are set to nil; keys outside the schema are dropped.
func (s Schema) Conform(values map[string]any) Row {
	row := make(Row, len(s))
	for _, column := range s {
		v, ok := values[column]
		if !ok {
			row[column] = nil
			continue
		}
		row[column] = v
	}
	return row
}

// Values returns the row's values in schema order.
func (s Schema) Values(row Row) []any {
	out := make([]any, len(s))
	for i, column := range s {
		out[i] = row[column]
	}
	return out
}
