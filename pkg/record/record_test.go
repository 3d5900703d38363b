package record

import (
	"testing"
)

func TestSchemaConform(t *testing.T) {
	schema := Schema{"officerID", "officerName", "officerDateOfBirth", "officerAddress"}

	row := schema.Conform(map[string]any{
		"officerID":   "abc123",
		"officerName": "John Smith",
		"unexpected":  "dropped",
	})

	if len(row) != len(schema) {
		t.Fatalf("len(row) = %d, want %d", len(row), len(schema))
	}
	if _, ok := row["unexpected"]; ok {
		t.Error("key outside schema should be dropped")
	}
	for _, column := range []string{"officerDateOfBirth", "officerAddress"} {
		v, ok := row[column]
		if !ok {
			t.Errorf("column %q missing, want present with nil", column)
		}
		if v != nil {
			t.Errorf("row[%q] = %v, want nil", column, v)
		}
	}
	if row["officerID"] != "abc123" {
		t.Errorf("officerID = %v, want abc123", row["officerID"])
	}
}

func TestSchemaValues(t *testing.T) {
	schema := Schema{"b", "a"}
	got := schema.Values(Row{"a": 1, "b": 2})
	if got[0] != 2 || got[1] != 1 {
		t.Errorf("Values() = %v, want [2 1]", got)
	}
}

func TestEntry(t *testing.T) {
	fields := map[string]string{"name": "  Jane  "}
	e := NewEntry(3, fields)
	fields["name"] = "changed"

	if e.Get("name") != "  Jane  " {
		t.Errorf("Get() = %q, entry should not observe caller mutation", e.Get("name"))
	}
	if e.Value("name") != "Jane" {
		t.Errorf("Value() = %q, want Jane", e.Value("name"))
	}
	if e.Get("") != "" || e.Get("missing") != "" {
		t.Error("absent columns should read as empty")
	}
	if e.Line != 3 {
		t.Errorf("Line = %d, want 3", e.Line)
	}
}
