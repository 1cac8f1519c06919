package ner

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

// fakeBackend emits a fixed tag per token position.
type fakeBackend struct {
	tags  map[int]int // token position -> label index
	ready bool
}

func (f *fakeBackend) TagBatch(ctx context.Context, batch []*TokenizedInput, numLabels int) ([][][]float32, error) {
	out := make([][][]float32, len(batch))
	for b, tokens := range batch {
		seq := make([][]float32, len(tokens.InputIDs))
		for i := range seq {
			logits := make([]float32, numLabels)
			if idx, ok := f.tags[i]; ok {
				logits[idx] = 10
			} else {
				logits[0] = 10 // O
			}
			seq[i] = logits
		}
		out[b] = seq
	}
	return out, nil
}

func (f *fakeBackend) IsReady() bool { return f.ready }
func (f *fakeBackend) Close() error  { return nil }

func labelIndex(t *testing.T, label string) int {
	t.Helper()
	for i, l := range DefaultLabels() {
		if l == label {
			return i
		}
	}
	t.Fatalf("unknown label %s", label)
	return -1
}

func TestNewWithBackend(t *testing.T) {
	tokenizer := newTestTokenizer(t, 16)

	t.Run("nil backend is fatal", func(t *testing.T) {
		if _, err := NewWithBackend(tokenizer, nil, DefaultLabels(), zap.NewNop()); err == nil {
			t.Error("expected error for nil backend")
		}
	})

	t.Run("unready backend is fatal", func(t *testing.T) {
		if _, err := NewWithBackend(tokenizer, &fakeBackend{ready: false}, DefaultLabels(), zap.NewNop()); err == nil {
			t.Error("expected error for unready backend")
		}
	})
}

func TestRecognize(t *testing.T) {
	text := "Hi John Smith works at Acme."
	// Token layout: 0=[CLS] 1=hi 2=john 3=smith 4=works 5=at 6=acme 7=. 8=[SEP]

	t.Run("decodes BIO groups with offsets", func(t *testing.T) {
		backend := &fakeBackend{ready: true, tags: map[int]int{
			2: labelIndex(t, "B-PERSON"),
			3: labelIndex(t, "I-PERSON"),
			6: labelIndex(t, "B-ORG"),
		}}
		recognizer, err := NewWithBackend(newTestTokenizer(t, 16), backend, DefaultLabels(), zap.NewNop())
		if err != nil {
			t.Fatalf("failed to create recognizer: %v", err)
		}

		entities, err := recognizer.Recognize(context.Background(), text)
		if err != nil {
			t.Fatalf("recognize failed: %v", err)
		}
		if len(entities) != 2 {
			t.Fatalf("got %d entities, want 2: %+v", len(entities), entities)
		}

		person := entities[0]
		if person.Text != "John Smith" || person.Label != "PERSON" {
			t.Errorf("entity 0 = %+v", person)
		}
		if person.Start != 3 || person.End != 13 {
			t.Errorf("PERSON offsets = [%d,%d), want [3,13)", person.Start, person.End)
		}
		if text[person.Start:person.End] != person.Text {
			t.Error("offsets do not slice back to the entity text")
		}

		org := entities[1]
		if org.Text != "Acme" || org.Label != "ORG" {
			t.Errorf("entity 1 = %+v", org)
		}
		if org.Confidence <= 0 || org.Confidence > 1 {
			t.Errorf("confidence out of range: %f", org.Confidence)
		}
	})

	t.Run("dangling I tag starts a new entity", func(t *testing.T) {
		backend := &fakeBackend{ready: true, tags: map[int]int{
			2: labelIndex(t, "I-PERSON"),
		}}
		recognizer, err := NewWithBackend(newTestTokenizer(t, 16), backend, DefaultLabels(), zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}

		entities, err := recognizer.Recognize(context.Background(), text)
		if err != nil {
			t.Fatalf("recognize failed: %v", err)
		}
		if len(entities) != 1 || entities[0].Text != "John" || entities[0].Label != "PERSON" {
			t.Errorf("got %+v", entities)
		}
	})

	t.Run("all O yields no entities", func(t *testing.T) {
		recognizer, err := NewWithBackend(newTestTokenizer(t, 16), &fakeBackend{ready: true}, DefaultLabels(), zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}
		entities, err := recognizer.Recognize(context.Background(), text)
		if err != nil {
			t.Fatalf("recognize failed: %v", err)
		}
		if len(entities) != 0 {
			t.Errorf("got %+v", entities)
		}
	})

	t.Run("blank text short-circuits", func(t *testing.T) {
		recognizer, err := NewWithBackend(newTestTokenizer(t, 16), &fakeBackend{ready: true}, DefaultLabels(), zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}
		entities, err := recognizer.Recognize(context.Background(), "  ")
		if err != nil || entities != nil {
			t.Errorf("got %v, %v", entities, err)
		}
	})
}
