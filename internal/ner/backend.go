package ner

import "context"

// TokenClassifierBackend defines a pluggable backend for token
// classification inference. Implementations may use ONNX Runtime or other
// engines.
type TokenClassifierBackend interface {
	// TagBatch runs a single inference for a batch of tokenized inputs and
	// returns per-token logits with shape [len(batch)][seqLen][numLabels].
	TagBatch(ctx context.Context, batch []*TokenizedInput, numLabels int) ([][][]float32, error)
	// IsReady returns whether the backend is initialized and ready.
	IsReady() bool
	// Close releases any native resources.
	Close() error
}

// NewTokenClassifierBackend creates a backend if supported by the current
// build. The default (no build tags) returns nil to avoid CGO dependencies.
// Implementations live in build-tagged files: backend_onnx.go, backend_stub.go.
