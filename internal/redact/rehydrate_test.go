package redact

import (
	"reflect"
	"testing"
)

func TestRehydrateString(t *testing.T) {
	t.Run("replaces all occurrences", func(t *testing.T) {
		mapping := map[string]string{
			"[PERSON_1]": "John",
			"[PHONE_1]":  "555-123-4567",
		}
		got := RehydrateString("[PERSON_1] called from [PHONE_1]. [PERSON_1] hung up.", mapping)
		want := "John called from 555-123-4567. John hung up."
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("longer placeholders replaced first", func(t *testing.T) {
		// [PERSON_1] is a substring of [PERSON_10]; naive ordering would
		// corrupt the longer token.
		mapping := map[string]string{
			"[PERSON_1]":  "John",
			"[PERSON_10]": "Jane",
		}
		got := RehydrateString("[PERSON_10] spoke with [PERSON_1]", mapping)
		want := "Jane spoke with John"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("unknown placeholders pass through", func(t *testing.T) {
		got := RehydrateString("[PERSON_9] stays put", map[string]string{"[PERSON_1]": "John"})
		if got != "[PERSON_9] stays put" {
			t.Errorf("unknown placeholder was altered: %q", got)
		}
	})

	t.Run("empty mapping is a no-op", func(t *testing.T) {
		if got := RehydrateString("[PERSON_1]", nil); got != "[PERSON_1]" {
			t.Errorf("got %q", got)
		}
	})
}

func TestRehydrate(t *testing.T) {
	mapping := map[string]string{
		"[PERSON_1]": "John",
		"[EMAIL_1]":  "john@example.com",
	}

	t.Run("walks nested structures", func(t *testing.T) {
		doc := map[string]any{
			"summary": "[PERSON_1] asked about billing",
			"entities": []any{
				"[PERSON_1]",
				"[EMAIL_1]",
			},
			"nested": map[string]any{
				"contact": "[EMAIL_1]",
			},
			"confidence": 0.92,
			"resolved":   true,
			"note":       nil,
		}

		got := Rehydrate(doc, mapping)
		want := map[string]any{
			"summary": "John asked about billing",
			"entities": []any{
				"John",
				"john@example.com",
			},
			"nested": map[string]any{
				"contact": "john@example.com",
			},
			"confidence": 0.92,
			"resolved":   true,
			"note":       nil,
		}

		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %#v, want %#v", got, want)
		}
	})

	t.Run("keys are not rewritten", func(t *testing.T) {
		doc := map[string]any{"[PERSON_1]": "value"}
		got := Rehydrate(doc, mapping).(map[string]any)
		if _, ok := got["[PERSON_1]"]; !ok {
			t.Error("map key was rewritten")
		}
	})

	t.Run("non-JSON scalars pass through", func(t *testing.T) {
		if got := Rehydrate(42, mapping); got != 42 {
			t.Errorf("got %v", got)
		}
	})
}
