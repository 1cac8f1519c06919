package ingest

// CallRecord is a single transcript awaiting analysis.
type CallRecord struct {
	CallID     string `csv:"call_id" parquet:"call_id" json:"call_id"`
	Transcript string `csv:"transcript" parquet:"transcript" json:"transcript"`
}

// FileFormat represents supported input file formats
type FileFormat string

const (
	FormatJSON    FileFormat = "json"
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch {
	case len(filename) >= 4 && filename[len(filename)-4:] == ".csv":
		return FormatCSV
	case len(filename) >= 8 && filename[len(filename)-8:] == ".parquet":
		return FormatParquet
	default:
		return FormatJSON
	}
}
