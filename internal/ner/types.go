package ner

import "time"

// Entity is a recognized mention in source text. Start and End are
// half-open byte offsets into the original text; Label is the model's
// native tag (PERSON, ORG, GPE, ...), not a redaction category.
type Entity struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float32 `json:"confidence"`
}

// ModelConfig contains token-classification model configuration.
type ModelConfig struct {
	ModelName    string        `yaml:"model_name" mapstructure:"model_name"`       // e.g. "dslim/bert-base-NER"
	ModelPath    string        `yaml:"model_path" mapstructure:"model_path"`       // "./models/ner.onnx"
	VocabPath    string        `yaml:"vocab_path" mapstructure:"vocab_path"`       // "./models/vocab.txt"
	LabelsPath   string        `yaml:"labels_path" mapstructure:"labels_path"`     // optional, one tag per line
	MaxLength    int           `yaml:"max_length" mapstructure:"max_length"`       // 512
	ModelTimeout time.Duration `yaml:"model_timeout" mapstructure:"model_timeout"` // 30s
}

// TokenizedInput represents tokenized text ready for model inference.
// Offsets map each non-special subtoken back to its byte range in the
// original text so decoded tags can be projected onto entity spans.
type TokenizedInput struct {
	InputIDs      []int32
	AttentionMask []int32
	TokenTypeIDs  []int32
	Offsets       []TokenOffset
	Length        int
	Truncated     bool
}

// TokenOffset locates one subtoken in the original text. Special tokens
// ([CLS], [SEP], [PAD]) carry a negative WordIndex.
type TokenOffset struct {
	Start     int
	End       int
	WordIndex int
}

// DefaultLabels is the BIO tag set used when no labels file is configured.
// It follows the OntoNotes-style labels the engine's category map expects.
func DefaultLabels() []string {
	return []string{
		"O",
		"B-PERSON", "I-PERSON",
		"B-ORG", "I-ORG",
		"B-GPE", "I-GPE",
		"B-LOC", "I-LOC",
		"B-FAC", "I-FAC",
		"B-DATE", "I-DATE",
		"B-MONEY", "I-MONEY",
	}
}
