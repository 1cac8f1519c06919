package ner

import (
	"os"
	"path/filepath"
	"testing"
)

var testVocab = []string{
	"[PAD]",
	"[UNK]",
	"[CLS]",
	"[SEP]",
	"hi",
	"john",
	"smith",
	"works",
	"at",
	"acme",
	".",
	"play",
	"##ing",
	",",
}

func writeTestVocab(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	var data []byte
	for _, tok := range testVocab {
		data = append(data, tok...)
		data = append(data, '\n')
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write vocab: %v", err)
	}
	return path
}

func newTestTokenizer(t *testing.T, maxLength int) *Tokenizer {
	t.Helper()
	tokenizer, err := NewTokenizer(writeTestVocab(t), maxLength)
	if err != nil {
		t.Fatalf("failed to create tokenizer: %v", err)
	}
	return tokenizer
}

func TestNewTokenizer(t *testing.T) {
	tokenizer := newTestTokenizer(t, 32)

	if len(tokenizer.Vocab) != len(testVocab) {
		t.Errorf("vocab size = %d, want %d", len(tokenizer.Vocab), len(testVocab))
	}
	if tokenizer.SpecialTokens["[CLS]"] != 2 {
		t.Errorf("[CLS] id = %d, want 2", tokenizer.SpecialTokens["[CLS]"])
	}

	t.Run("missing specials rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vocab.txt")
		if err := os.WriteFile(path, []byte("hello\nworld\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewTokenizer(path, 32); err == nil {
			t.Error("expected error for vocab without special tokens")
		}
	})
}

func TestSplitWords(t *testing.T) {
	words := splitWords("Hi John, works.")

	want := []wordSpan{
		{text: "Hi", start: 0, end: 2},
		{text: "John", start: 3, end: 7},
		{text: ",", start: 7, end: 8},
		{text: "works", start: 9, end: 14},
		{text: ".", start: 14, end: 15},
	}
	if len(words) != len(want) {
		t.Fatalf("got %d words, want %d: %v", len(words), len(want), words)
	}
	for i, w := range want {
		if words[i] != w {
			t.Errorf("word %d = %+v, want %+v", i, words[i], w)
		}
	}
}

func TestWordPieces(t *testing.T) {
	tokenizer := newTestTokenizer(t, 32)

	t.Run("whole word", func(t *testing.T) {
		pieces := tokenizer.wordPieces("John")
		if len(pieces) != 1 || pieces[0] != 5 {
			t.Errorf("got %v, want [5]", pieces)
		}
	})

	t.Run("continuation pieces", func(t *testing.T) {
		pieces := tokenizer.wordPieces("playing")
		if len(pieces) != 2 || pieces[0] != 11 || pieces[1] != 12 {
			t.Errorf("got %v, want [11 12]", pieces)
		}
	})

	t.Run("unknown collapses to UNK", func(t *testing.T) {
		pieces := tokenizer.wordPieces("zzz")
		if len(pieces) != 1 || pieces[0] != tokenizer.SpecialTokens["[UNK]"] {
			t.Errorf("got %v, want [UNK]", pieces)
		}
	})
}

func TestTokenize(t *testing.T) {
	tokenizer := newTestTokenizer(t, 16)

	t.Run("layout and offsets", func(t *testing.T) {
		tokens, err := tokenizer.Tokenize("Hi John")
		if err != nil {
			t.Fatalf("tokenize failed: %v", err)
		}

		// [CLS] hi john [SEP] + padding
		if tokens.Length != 4 {
			t.Errorf("length = %d, want 4", tokens.Length)
		}
		if len(tokens.InputIDs) != 16 || len(tokens.AttentionMask) != 16 || len(tokens.Offsets) != 16 {
			t.Fatalf("all slices must be padded to max length")
		}
		if tokens.InputIDs[0] != 2 || tokens.InputIDs[3] != 3 {
			t.Errorf("expected [CLS]...[SEP] framing, got %v", tokens.InputIDs[:4])
		}
		if tokens.AttentionMask[3] != 1 || tokens.AttentionMask[4] != 0 {
			t.Errorf("attention mask wrong around padding: %v", tokens.AttentionMask)
		}
		if tokens.Offsets[0].WordIndex != -1 {
			t.Error("[CLS] must carry WordIndex -1")
		}
		if tokens.Offsets[2].Start != 3 || tokens.Offsets[2].End != 7 || tokens.Offsets[2].WordIndex != 1 {
			t.Errorf("john offset = %+v", tokens.Offsets[2])
		}
		if tokens.Truncated {
			t.Error("short input should not truncate")
		}
	})

	t.Run("truncates long input", func(t *testing.T) {
		tiny, err := NewTokenizer(writeTestVocab(t), 5)
		if err != nil {
			t.Fatal(err)
		}
		tokens, err := tiny.Tokenize("hi john smith works at acme")
		if err != nil {
			t.Fatalf("tokenize failed: %v", err)
		}
		if !tokens.Truncated {
			t.Error("expected truncation")
		}
		if len(tokens.InputIDs) != 5 {
			t.Errorf("padded length = %d, want 5", len(tokens.InputIDs))
		}
		if tokens.InputIDs[tokens.Length-1] != 3 {
			t.Error("truncated sequence must still end with [SEP]")
		}
	})

	t.Run("rejects empty input", func(t *testing.T) {
		if _, err := tokenizer.Tokenize("   "); err == nil {
			t.Error("expected error for blank text")
		}
	})
}
