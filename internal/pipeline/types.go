package pipeline

import "time"

// Config contains batch pipeline configuration
type Config struct {
	InputFile      string `yaml:"input_file" mapstructure:"input_file"`
	OutputFile     string `yaml:"output_file" mapstructure:"output_file"`
	CheckpointFile string `yaml:"checkpoint_file" mapstructure:"checkpoint_file"`
	DeadLetterFile string `yaml:"dead_letter_file" mapstructure:"dead_letter_file"`
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
	PersistVaults  bool   `yaml:"persist_vaults" mapstructure:"persist_vaults"`
	StoreResults   bool   `yaml:"store_results" mapstructure:"store_results"`
}

// Result summarizes one pipeline run
type Result struct {
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// checkpoint records which call IDs have been fully processed, so an
// interrupted run resumes where it left off.
type checkpoint struct {
	ProcessedIDs []string  `json:"processed_ids"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// deadLetterEntry is one failed call, appended to the dead letter file as a
// JSON line.
type deadLetterEntry struct {
	CallID    string    `json:"call_id"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
