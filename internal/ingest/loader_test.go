package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestDetectFileFormat(t *testing.T) {
	tests := []struct {
		file string
		want FileFormat
	}{
		{"calls.json", FormatJSON},
		{"calls.csv", FormatCSV},
		{"calls.parquet", FormatParquet},
		{"calls", FormatJSON},
	}
	for _, tc := range tests {
		if got := DetectFileFormat(tc.file); got != tc.want {
			t.Errorf("DetectFileFormat(%s) = %s, want %s", tc.file, got, tc.want)
		}
	}
}

func TestLoadFileJSON(t *testing.T) {
	loader := NewLoader(zap.NewNop())

	t.Run("array", func(t *testing.T) {
		path := writeFile(t, "calls.json", `[
			{"call_id": "CALL-001", "transcript": "Hi, this is John."},
			{"call_id": "CALL-002", "transcript": "My card was charged twice."}
		]`)

		records, err := loader.LoadFile(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("got %d records, want 2", len(records))
		}
		if records[0].CallID != "CALL-001" || records[1].Transcript != "My card was charged twice." {
			t.Errorf("records = %+v", records)
		}
	})

	t.Run("newline delimited", func(t *testing.T) {
		path := writeFile(t, "calls.json",
			`{"call_id": "CALL-001", "transcript": "one"}
{"call_id": "CALL-002", "transcript": "two"}
`)

		records, err := loader.LoadFile(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("got %d records, want 2", len(records))
		}
	})

	t.Run("invalid records skipped", func(t *testing.T) {
		path := writeFile(t, "calls.json", `[
			{"call_id": "CALL-001", "transcript": "ok"},
			{"call_id": "", "transcript": "no id"},
			{"call_id": "CALL-003", "transcript": "  "}
		]`)

		records, err := loader.LoadFile(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if len(records) != 1 || records[0].CallID != "CALL-001" {
			t.Errorf("records = %+v", records)
		}
	})

	t.Run("malformed file errors", func(t *testing.T) {
		path := writeFile(t, "calls.json", `[{"call_id":`)
		if _, err := loader.LoadFile(path); err == nil {
			t.Error("expected error for malformed JSON")
		}
	})
}

func TestLoadFileCSV(t *testing.T) {
	loader := NewLoader(zap.NewNop())

	t.Run("header columns located by name", func(t *testing.T) {
		path := writeFile(t, "calls.csv",
			"transcript,call_id\n\"Hello, I need help\",CALL-001\nsecond call,CALL-002\n")

		records, err := loader.LoadFile(path)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("got %d records, want 2", len(records))
		}
		if records[0].CallID != "CALL-001" || records[0].Transcript != "Hello, I need help" {
			t.Errorf("records[0] = %+v", records[0])
		}
	})

	t.Run("missing columns rejected", func(t *testing.T) {
		path := writeFile(t, "calls.csv", "id,text\n1,hello\n")
		if _, err := loader.LoadFile(path); err == nil {
			t.Error("expected error for unknown header")
		}
	})
}
