package redact

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/callveil/callveil/internal/ner"
)

// nerLabelMap translates the recognizer's native labels into redaction
// categories. Labels missing from the map are not PII-relevant and are
// dropped silently.
var nerLabelMap = map[string]Category{
	"PERSON": CategoryPerson,
	"ORG":    CategoryOrg,
	"GPE":    CategoryLocation,
	"LOC":    CategoryLocation,
	"FAC":    CategoryLocation,
	"DATE":   CategoryDate,
	"MONEY":  CategoryMoney,
}

// minEntityLen discards single-character recognizer hits.
const minEntityLen = 2

// Engine is the hybrid pattern + NER redaction engine. The pattern pass
// runs first and claims its ranges; the recognizer only fills the gaps.
type Engine struct {
	rules      []Rule
	recognizer ner.Recognizer
	logger     *zap.Logger
}

// New creates a redaction engine. A working recognizer is required: the
// engine does not degrade to pattern-only detection.
func New(recognizer ner.Recognizer, logger *zap.Logger) (*Engine, error) {
	if recognizer == nil {
		return nil, fmt.Errorf("entity recognizer is required")
	}

	engine := &Engine{
		rules:      DefaultRules(),
		recognizer: recognizer,
		logger:     logger,
	}

	logger.Info("Redaction engine initialized",
		zap.Int("pattern_rules", len(engine.rules)),
	)
	return engine, nil
}

// detectPatterns runs the ordered rule set and returns non-overlapping
// spans. Matches are skipped when any part of their range is already
// claimed, so rule order decides who wins contested text.
func (e *Engine) detectPatterns(text string, claimed *claimSet) []Span {
	var spans []Span
	for _, rule := range e.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			if !claimed.Claim(loc[0], loc[1]) {
				continue
			}
			spans = append(spans, Span{
				Start:    loc[0],
				End:      loc[1],
				Category: rule.Category,
				Text:     text[loc[0]:loc[1]],
			})
		}
	}
	return spans
}

// detectEntities runs the recognizer and keeps mentions that map to a
// redaction category, meet the minimum length, and do not intersect
// pattern-claimed ranges.
func (e *Engine) detectEntities(ctx context.Context, text string, claimed *claimSet) ([]Span, error) {
	entities, err := e.recognizer.Recognize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("entity recognition failed: %w", err)
	}

	var spans []Span
	for _, ent := range entities {
		category, ok := nerLabelMap[ent.Label]
		if !ok {
			continue
		}
		if len(strings.TrimSpace(ent.Text)) < minEntityLen {
			continue
		}
		if !claimed.Claim(ent.Start, ent.End) {
			continue
		}
		spans = append(spans, Span{
			Start:    ent.Start,
			End:      ent.End,
			Category: category,
			Text:     ent.Text,
		})
	}
	return spans, nil
}

// resolveSpans merges both detector outputs into one list sorted by start
// offset descending. Replacing right-to-left keeps leftward offsets valid
// while placeholders of different length are spliced in.
func resolveSpans(patternSpans, entitySpans []Span) []Span {
	spans := make([]Span, 0, len(patternSpans)+len(entitySpans))
	spans = append(spans, patternSpans...)
	spans = append(spans, entitySpans...)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start > spans[j].Start })
	return spans
}

// Mask detects and masks all PII in text. Every call gets a fresh Vault;
// the returned mapping is local-only and must never be sent to the
// generation service.
func (e *Engine) Mask(ctx context.Context, text string) (*MaskResult, error) {
	claimed := &claimSet{}

	patternSpans := e.detectPatterns(text, claimed)
	entitySpans, err := e.detectEntities(ctx, text, claimed)
	if err != nil {
		return nil, err
	}
	spans := resolveSpans(patternSpans, entitySpans)

	vault := NewVault()
	masked := text
	counts := make(map[Category]int)
	for _, span := range spans {
		placeholder := vault.GetPlaceholder(span.Text, span.Category)
		masked = masked[:span.Start] + placeholder + masked[span.End:]
		counts[span.Category]++
	}

	findings := make([]Finding, 0, len(counts))
	for _, rule := range e.rules {
		if n := counts[rule.Category]; n > 0 {
			findings = append(findings, Finding{Category: rule.Category, Count: n})
		}
	}
	for _, category := range []Category{CategoryPerson, CategoryOrg, CategoryLocation, CategoryDate, CategoryMoney} {
		if n := counts[category]; n > 0 {
			findings = append(findings, Finding{Category: category, Count: n})
		}
	}

	e.logger.Debug("Transcript masked",
		zap.Int("pattern_spans", len(patternSpans)),
		zap.Int("entity_spans", len(entitySpans)),
		zap.Int("vault_entries", vault.Len()),
	)

	return &MaskResult{
		Masked:   masked,
		Mapping:  vault.Export(),
		Findings: findings,
	}, nil
}
