// Package rows reads entries from CSV and writes enriched rows as JSON or CSV.
package rows

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sternrassler/lookup-reconciler/pkg/record"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNoHeader is returned for input without a header row.
var ErrNoHeader = errors.New("csv input has no header row")

// ReadCSVFile reads entries from a CSV file.
func ReadCSVFile(path string) ([]record.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// ReadCSV reads entries from CSV with a header row. A UTF-8 or UTF-16 byte
// order mark is honoured. Entry line numbers are the file line on which the
// row starts, so the first data row is line 2.
func ReadCSV(r io.Reader) ([]record.Entry, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var entries []record.Entry
	for {
		values, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		line, _ := reader.FieldPos(0)
		if blank(values) {
			continue
		}

		fields := make(map[string]string, len(header))
		for i, column := range header {
			if column == "" || i >= len(values) {
				continue
			}
			fields[column] = values[i]
		}
		entries = append(entries, record.Entry{Line: line, Fields: fields})
	}

	return entries, nil
}

func blank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
