package grounding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/coursegen-backend/internal/cache"
	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
	"github.com/lumenlearn/coursegen-backend/internal/platform/openai"
	"github.com/lumenlearn/coursegen-backend/internal/reliability"
)

const (
	// Shorter sources carry too little signal to extract claims from.
	minSourceForExtraction = 80

	// Source text is truncated before prompting so one oversized chapter
	// cannot blow the token budget.
	maxSourceInPrompt = 12000

	factCacheTTL = 24 * time.Hour
)

// ExtractRequest identifies one extraction call. Language is a BCP-47-ish
// tag ("en", "es", ...) and steers the output language of the statements.
type ExtractRequest struct {
	SourceText   string
	ChapterTitle string
	Language     string
}

// FactExtractor pulls atomic verifiable claims out of source text through
// the generation client. Extraction is best-effort: on total failure it
// returns an empty fact list so generation proceeds ungrounded instead of
// blocking the chapter.
type FactExtractor struct {
	log     *logger.Logger
	gen     openai.Client
	breaker *reliability.Breaker
	store   cache.Store
	policy  reliability.RetryPolicy
	modelID string
}

// NewFactExtractor wires the extractor against the shared text breaker.
// store may be nil to disable fact caching.
func NewFactExtractor(log *logger.Logger, gen openai.Client, breaker *reliability.Breaker, store cache.Store) *FactExtractor {
	return &FactExtractor{
		log:     log.With("service", "FactExtractor"),
		gen:     gen,
		breaker: breaker,
		store:   store,
		policy:  reliability.CriticalPolicy(),
	}
}

var factSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"facts": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"statement":    map[string]any{"type": "string"},
					"source_quote": map[string]any{"type": "string"},
					"category": map[string]any{
						"type": "string",
						"enum": []string{"definition", "formula", "process", "relationship", "statistic", "example"},
					},
					"confidence": map[string]any{"type": "number"},
					"keywords":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"statement", "source_quote", "category"},
			},
		},
	},
	"required": []string{"facts"},
}

type factPayload struct {
	Facts []struct {
		Statement   string   `json:"statement"`
		SourceQuote string   `json:"source_quote"`
		Category    string   `json:"category"`
		Confidence  float64  `json:"confidence"`
		Keywords    []string `json:"keywords"`
	} `json:"facts"`
}

// Extract returns the claims found in req.SourceText. A nil slice with a nil
// error means extraction was skipped or failed and the caller should proceed
// ungrounded.
func (e *FactExtractor) Extract(ctx context.Context, req ExtractRequest) ([]domain.Fact, error) {
	source := strings.TrimSpace(req.SourceText)
	if len(source) < minSourceForExtraction {
		return nil, nil
	}
	if len(source) > maxSourceInPrompt {
		source = source[:maxSourceInPrompt]
	}

	cacheKey := cache.Key(map[string]any{
		"op":       "extract_facts",
		"source":   source,
		"title":    req.ChapterTitle,
		"language": req.Language,
	})
	if e.store != nil {
		if raw, ok := e.store.Get(ctx, cacheKey); ok {
			var facts []domain.Fact
			if err := json.Unmarshal([]byte(raw), &facts); err == nil {
				return facts, nil
			}
			e.store.Delete(ctx, cacheKey)
		}
	}

	genReq := openai.GenerateRequest{
		System:      extractionSystemPrompt(req.Language),
		Prompt:      extractionUserPrompt(req.ChapterTitle, source),
		Temperature: 0.1,
		SchemaName:  "record_facts",
		Schema:      factSchema,
	}

	var result openai.Result
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		result, _, callErr = reliability.Retry(ctx, e.log, "extract_facts", e.policy,
			func(ctx context.Context) (openai.Result, error) {
				return e.gen.Generate(ctx, genReq)
			})
		return callErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.log.Warn("fact extraction failed, proceeding ungrounded",
			"chapter", req.ChapterTitle,
			"error", err.Error(),
		)
		return nil, nil
	}

	facts, err := parseFacts(result.Content)
	if err != nil {
		e.log.Warn("unparseable fact payload, proceeding ungrounded",
			"chapter", req.ChapterTitle,
			"error", err.Error(),
		)
		return nil, nil
	}

	if e.store != nil && len(facts) > 0 {
		if raw, mErr := json.Marshal(facts); mErr == nil {
			e.store.SetTTL(ctx, cacheKey, string(raw), factCacheTTL)
		}
	}
	e.log.Debug("extracted facts", "chapter", req.ChapterTitle, "count", len(facts))
	return facts, nil
}

func parseFacts(content string) ([]domain.Fact, error) {
	var payload factPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("decode facts: %w", err)
	}
	facts := make([]domain.Fact, 0, len(payload.Facts))
	for _, f := range payload.Facts {
		statement := strings.TrimSpace(f.Statement)
		if statement == "" {
			continue
		}
		category := domain.FactCategory(strings.ToLower(strings.TrimSpace(f.Category)))
		if !category.Valid() {
			category = domain.FactExample
		}
		confidence := f.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.5
		}
		facts = append(facts, domain.Fact{
			ID:          uuid.NewString(),
			Statement:   statement,
			SourceQuote: strings.TrimSpace(f.SourceQuote),
			Category:    category,
			Confidence:  confidence,
			Keywords:    f.Keywords,
		})
	}
	return facts, nil
}

func extractionSystemPrompt(language string) string {
	lang := language
	if lang == "" {
		lang = "the language of the source text"
	}
	return "You extract atomic, independently verifiable claims from educational text. " +
		"Each claim must be supported by a literal quote from the source. " +
		"Write statements in " + lang + ". Never invent claims that are not in the text."
}

func extractionUserPrompt(title, source string) string {
	var b strings.Builder
	if title != "" {
		b.WriteString("Chapter: ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	b.WriteString("Extract the verifiable claims from the following text. ")
	b.WriteString("For each claim record its statement, the exact supporting quote, ")
	b.WriteString("a category, your confidence, and 3-6 keywords.\n\n")
	b.WriteString(source)
	return b.String()
}
