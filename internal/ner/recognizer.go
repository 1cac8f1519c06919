package ner

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ModelRecognizer runs a token-classification model over transcripts and
// decodes BIO tags into entity mentions. The model resource is process-wide
// and expensive to load; construct one recognizer at startup and inject it
// wherever entities are needed.
type ModelRecognizer struct {
	tokenizer *Tokenizer
	backend   TokenClassifierBackend
	labels    []string
	logger    *zap.Logger

	mu         sync.Mutex
	inferences int64
	totalTime  time.Duration
}

// NewModelRecognizer loads the tokenizer, labels, and inference backend.
// Backend unavailability is a construction error, not a degraded mode: the
// caller cannot fall back to pattern-only detection.
func NewModelRecognizer(cfg ModelConfig, logger *zap.Logger) (*ModelRecognizer, error) {
	start := time.Now()

	backend := NewTokenClassifierBackend(logger, cfg.ModelPath, cfg.MaxLength)
	if backend == nil || !backend.IsReady() {
		return nil, fmt.Errorf("token classification backend unavailable for model %q (build with -tags onnx and provide model_path)", cfg.ModelName)
	}

	tokenizer, err := NewTokenizer(cfg.VocabPath, cfg.MaxLength)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}

	labels := DefaultLabels()
	if cfg.LabelsPath != "" {
		labels, err = loadLabels(cfg.LabelsPath)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("failed to load labels: %w", err)
		}
	}

	logger.Info("Entity recognizer initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("vocab_size", len(tokenizer.Vocab)),
		zap.Int("labels", len(labels)),
		zap.Int("max_length", cfg.MaxLength),
		zap.Duration("load_time", time.Since(start)),
	)

	return &ModelRecognizer{
		tokenizer: tokenizer,
		backend:   backend,
		labels:    labels,
		logger:    logger,
	}, nil
}

// NewWithBackend wires a recognizer from pre-built parts. Used by tests to
// substitute a fake backend.
func NewWithBackend(tokenizer *Tokenizer, backend TokenClassifierBackend, labels []string, logger *zap.Logger) (*ModelRecognizer, error) {
	if backend == nil || !backend.IsReady() {
		return nil, fmt.Errorf("token classification backend unavailable")
	}
	return &ModelRecognizer{tokenizer: tokenizer, backend: backend, labels: labels, logger: logger}, nil
}

// loadLabels reads a BIO tag set, one tag per line.
func loadLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// Recognize tags text and returns decoded entity mentions with byte offsets
// into the original text.
func (r *ModelRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	start := time.Now()

	tokens, err := r.tokenizer.Tokenize(text)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed: %w", err)
	}

	logits, err := r.backend.TagBatch(ctx, []*TokenizedInput{tokens}, len(r.labels))
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if len(logits) != 1 {
		return nil, fmt.Errorf("unexpected batch size %d in model output", len(logits))
	}

	entities := r.decode(text, tokens, logits[0])

	r.mu.Lock()
	r.inferences++
	r.totalTime += time.Since(start)
	r.mu.Unlock()

	r.logger.Debug("Entity recognition completed",
		zap.Int("entities", len(entities)),
		zap.Duration("duration", time.Since(start)),
	)
	return entities, nil
}

// wordTag is the argmax tag of a word's first subtoken.
type wordTag struct {
	start int
	end   int
	label string
	prob  float32
}

// decode projects per-subtoken logits onto words (first subtoken wins) and
// groups contiguous B-/I- tags of the same type into entities.
func (r *ModelRecognizer) decode(text string, tokens *TokenizedInput, logits [][]float32) []Entity {
	var words []wordTag
	seen := -1
	for i, off := range tokens.Offsets {
		if off.WordIndex < 0 || i >= len(logits) {
			continue
		}
		if off.WordIndex == seen {
			continue // only the first subtoken of each word carries the tag
		}
		seen = off.WordIndex
		idx, prob := argmaxSoftmax(logits[i])
		if idx >= len(r.labels) {
			continue
		}
		words = append(words, wordTag{start: off.Start, end: off.End, label: r.labels[idx], prob: prob})
	}

	var entities []Entity
	flush := func(kind string, first, last int, probSum float32, count int) {
		if kind == "" {
			return
		}
		entities = append(entities, Entity{
			Text:       text[first:last],
			Label:      kind,
			Start:      first,
			End:        last,
			Confidence: probSum / float32(count),
		})
	}

	kind := ""
	first, last, count := 0, 0, 0
	var probSum float32
	for _, w := range words {
		tag := w.label
		switch {
		case tag == "O" || tag == "":
			flush(kind, first, last, probSum, count)
			kind = ""
		case strings.HasPrefix(tag, "B-"):
			flush(kind, first, last, probSum, count)
			kind = tag[2:]
			first, last, probSum, count = w.start, w.end, w.prob, 1
		case strings.HasPrefix(tag, "I-"):
			if kind == tag[2:] {
				last = w.end
				probSum += w.prob
				count++
			} else {
				// dangling I- tag: treat as a new entity
				flush(kind, first, last, probSum, count)
				kind = tag[2:]
				first, last, probSum, count = w.start, w.end, w.prob, 1
			}
		default:
			flush(kind, first, last, probSum, count)
			kind = ""
		}
	}
	flush(kind, first, last, probSum, count)

	return entities
}

// argmaxSoftmax returns the index of the largest logit and its softmax
// probability.
func argmaxSoftmax(logits []float32) (int, float32) {
	if len(logits) == 0 {
		return 0, 0
	}
	best := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[best] {
			best = i
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v - logits[best]))
	}
	return best, float32(1.0 / sum)
}

// Stats reports inference counters for the info endpoint.
func (r *ModelRecognizer) Stats() (int64, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	avg := time.Duration(0)
	if r.inferences > 0 {
		avg = r.totalTime / time.Duration(r.inferences)
	}
	return r.inferences, avg
}

// Close releases the backend's native resources.
func (r *ModelRecognizer) Close() error {
	return r.backend.Close()
}
