package rows

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/lookup-reconciler/pkg/record"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("invalid format %q: must be one of: json, csv", s)
	}
}

// Write encodes rows in the given format with columns in schema order.
func Write(w io.Writer, format Format, schema record.Schema, rows []record.Row) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, schema, rows)
	default:
		return WriteJSON(w, schema, rows)
	}
}

// WriteJSON writes rows as an indented JSON array. Missing values are null.
func WriteJSON(w io.Writer, schema record.Schema, rows []record.Row) error {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, row := range rows {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for j, column := range schema {
			if j > 0 {
				buf.WriteString(",")
			}
			key, err := json.Marshal(column)
			if err != nil {
				return err
			}
			value, err := json.Marshal(row[column])
			if err != nil {
				return fmt.Errorf("encode %s: %w", column, err)
			}
			buf.WriteString("\n    ")
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(value)
		}
		buf.WriteString("\n  }")
	}
	if len(rows) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteCSV writes a header of schema columns followed by one line per row.
// Missing values are written as empty cells.
func WriteCSV(w io.Writer, schema record.Schema, rows []record.Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(schema); err != nil {
		return err
	}

	line := make([]string, len(schema))
	for _, row := range rows {
		for i, v := range schema.Values(row) {
			line[i] = cell(v)
		}
		if err := writer.Write(line); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
