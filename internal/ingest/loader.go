package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// Loader reads call records from JSON, CSV, or Parquet files. The batch
// pipeline re-reads its source every iteration so that records appended
// mid-run are picked up.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a call record loader
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadFile reads all valid call records from a file, detecting the format
// from its extension. Records with an empty call ID or transcript are
// skipped with a warning.
func (l *Loader) LoadFile(filePath string) ([]CallRecord, error) {
	format := DetectFileFormat(filePath)

	var records []CallRecord
	var err error

	switch format {
	case FormatJSON:
		records, err = l.loadJSON(filePath)
	case FormatCSV:
		records, err = l.loadCSV(filePath)
	case FormatParquet:
		records, err = l.loadParquet(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	valid := records[:0]
	for _, record := range records {
		if l.validateRecord(&record) {
			valid = append(valid, record)
		}
	}

	l.logger.Debug("Loaded call records",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("records", len(valid)))

	return valid, nil
}

// loadJSON reads either a JSON array of records or newline-delimited
// JSON objects.
func (l *Loader) loadJSON(filePath string) ([]CallRecord, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var records []CallRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse JSON array: %w", err)
		}
		return records, nil
	}

	var records []CallRecord
	decoder := json.NewDecoder(strings.NewReader(trimmed))
	for {
		var record CallRecord
		err := decoder.Decode(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// loadCSV reads records from a CSV file with call_id and transcript columns.
func (l *Loader) loadCSV(filePath string) ([]CallRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idCol, transcriptCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "call_id":
			idCol = i
		case "transcript":
			transcriptCol = i
		}
	}
	if idCol < 0 || transcriptCol < 0 {
		return nil, fmt.Errorf("CSV header missing call_id or transcript column: %v", header)
	}

	var records []CallRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			l.logger.Warn("Failed to read CSV record", zap.Error(err))
			continue
		}
		if idCol >= len(row) || transcriptCol >= len(row) {
			l.logger.Warn("Invalid CSV record length", zap.Int("length", len(row)))
			continue
		}
		records = append(records, CallRecord{
			CallID:     strings.TrimSpace(row[idCol]),
			Transcript: row[transcriptCol],
		})
	}
	return records, nil
}

// loadParquet reads records from a Parquet file.
func (l *Loader) loadParquet(filePath string) ([]CallRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	var records []CallRecord
	for {
		var record CallRecord
		err := reader.Read(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			l.logger.Warn("Failed to read Parquet record", zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// validateRecord validates a call record
func (l *Loader) validateRecord(record *CallRecord) bool {
	if strings.TrimSpace(record.CallID) == "" {
		l.logger.Warn("Skipping record with empty call_id")
		return false
	}
	if strings.TrimSpace(record.Transcript) == "" {
		l.logger.Warn("Skipping record with empty transcript", zap.String("call_id", record.CallID))
		return false
	}
	return true
}
