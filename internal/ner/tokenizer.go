package ner

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer handles offset-preserving WordPiece tokenization for BERT-style
// token-classification models.
type Tokenizer struct {
	Vocab         map[string]int32
	SpecialTokens map[string]int32
	MaxLength     int
}

// requiredSpecials must all be present in the vocabulary file.
var requiredSpecials = []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]"}

// NewTokenizer loads a vocab.txt file (one token per line, id = line index).
func NewTokenizer(vocabPath string, maxLength int) (*Tokenizer, error) {
	file, err := os.Open(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab file: %w", err)
	}
	defer file.Close()

	vocab := make(map[string]int32)
	scanner := bufio.NewScanner(file)
	var id int32
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r\n")
		if token == "" {
			id++
			continue
		}
		vocab[token] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocab file: %w", err)
	}

	specials := make(map[string]int32, len(requiredSpecials))
	for _, tok := range requiredSpecials {
		vid, ok := vocab[tok]
		if !ok {
			return nil, fmt.Errorf("vocab is missing special token %s", tok)
		}
		specials[tok] = vid
	}

	return &Tokenizer{
		Vocab:         vocab,
		SpecialTokens: specials,
		MaxLength:     maxLength,
	}, nil
}

// wordSpan is a whitespace/punctuation-delimited word with byte offsets.
type wordSpan struct {
	text  string
	start int
	end   int
}

// splitWords scans text into word tokens: runs of letters/digits plus
// single punctuation runes. Offsets are byte positions.
func splitWords(text string) []wordSpan {
	var words []wordSpan
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			start := i
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			words = append(words, wordSpan{text: text[start:i], start: start, end: i})
		default:
			words = append(words, wordSpan{text: text[i : i+size], start: i, end: i + size})
			i += size
		}
	}
	return words
}

// wordPieces splits a single word into vocabulary subtokens using greedy
// longest-match. Unknown words collapse to a single [UNK].
func (t *Tokenizer) wordPieces(word string) []int32 {
	lower := strings.ToLower(word)
	var pieces []int32
	start := 0
	for start < len(lower) {
		end := len(lower)
		var id int32 = -1
		for end > start {
			piece := lower[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if vid, ok := t.Vocab[piece]; ok {
				id = vid
				break
			}
			end--
		}
		if id < 0 {
			return []int32{t.SpecialTokens["[UNK]"]}
		}
		pieces = append(pieces, id)
		start = end
	}
	return pieces
}

// Tokenize converts text to a padded model input. Each non-special subtoken
// records the byte range and index of the word it came from, so per-token
// tags can be projected back onto the source text.
func (t *Tokenizer) Tokenize(text string) (*TokenizedInput, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot tokenize empty text")
	}

	words := splitWords(text)

	inputIDs := []int32{t.SpecialTokens["[CLS]"]}
	offsets := []TokenOffset{{Start: -1, End: -1, WordIndex: -1}}
	truncated := false

	for wi, word := range words {
		pieces := t.wordPieces(word.text)
		if len(inputIDs)+len(pieces) > t.MaxLength-1 {
			truncated = true
			break
		}
		for _, id := range pieces {
			inputIDs = append(inputIDs, id)
			offsets = append(offsets, TokenOffset{Start: word.start, End: word.end, WordIndex: wi})
		}
	}

	inputIDs = append(inputIDs, t.SpecialTokens["[SEP]"])
	offsets = append(offsets, TokenOffset{Start: -1, End: -1, WordIndex: -1})

	length := len(inputIDs)
	attentionMask := make([]int32, 0, t.MaxLength)
	for range inputIDs {
		attentionMask = append(attentionMask, 1)
	}
	for len(inputIDs) < t.MaxLength {
		inputIDs = append(inputIDs, t.SpecialTokens["[PAD]"])
		attentionMask = append(attentionMask, 0)
		offsets = append(offsets, TokenOffset{Start: -1, End: -1, WordIndex: -1})
	}

	return &TokenizedInput{
		InputIDs:      inputIDs,
		AttentionMask: attentionMask,
		TokenTypeIDs:  make([]int32, t.MaxLength),
		Offsets:       offsets,
		Length:        length,
		Truncated:     truncated,
	}, nil
}
