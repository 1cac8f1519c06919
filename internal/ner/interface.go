package ner

import "context"

// Recognizer identifies entity mentions in text. Implementations must be
// safe for repeated synchronous invocation; inference is read-only with
// respect to shared model state.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
	Close() error
}

// Ensure ModelRecognizer implements the interface
var _ Recognizer = (*ModelRecognizer)(nil)
