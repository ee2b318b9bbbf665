package grounding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
	"github.com/lumenlearn/coursegen-backend/internal/platform/openai"
	"github.com/lumenlearn/coursegen-backend/internal/question"
	"github.com/lumenlearn/coursegen-backend/internal/reliability"
)

// SemanticConfig carries the grounding calibration. The confidence ladder
// (0.80 strong / 0.70 weak / 0.45 adjudication fallback) and the minimum
// are empirical calibration values; keep them in sync with the thresholds
// the validators were tuned against. MinConfidence gates validity on every
// path: a score below it forces IsValid false.
type SemanticConfig struct {
	MinConfidence        float64
	StrongKeywordMatches int
	StrongOverlap        float64
	WeakOverlap          float64
	RefMinLen            int
	RefMaxLen            int
}

func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{
		MinConfidence:        0.6,
		StrongKeywordMatches: 2,
		StrongOverlap:        0.30,
		WeakOverlap:          0.15,
		RefMinLen:            15,
		RefMaxLen:            300,
	}
}

const (
	strongMatchConfidence  = 0.80
	weakMatchConfidence    = 0.70
	trustedRefConfidence   = 0.45
	untrustedRefConfidence = 0.30
)

// SemanticValidator checks that a question's answer is grounded in the
// extracted facts. The keyword heuristic short-circuits most questions for
// free; only inconclusive ones cost an adjudication call.
type SemanticValidator struct {
	log     *logger.Logger
	gen     openai.Client
	breaker *reliability.Breaker
	cfg     SemanticConfig
	policy  reliability.RetryPolicy
}

func NewSemanticValidator(log *logger.Logger, gen openai.Client, breaker *reliability.Breaker, cfg SemanticConfig) *SemanticValidator {
	if cfg.MinConfidence <= 0 {
		cfg = DefaultSemanticConfig()
	}
	return &SemanticValidator{
		log:     log.With("service", "SemanticValidator"),
		gen:     gen,
		breaker: breaker,
		cfg:     cfg,
		policy:  reliability.FastPolicy(),
	}
}

// Validate grounds one question against the fact set. sourceText is only
// consulted when the heuristics are inconclusive and the model adjudicates.
func (v *SemanticValidator) Validate(ctx context.Context, q domain.Question, facts []domain.Fact, sourceText string) domain.SemanticValidationResult {
	qtext := q.Prompt
	if q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options) {
		qtext += " " + q.Options[q.CorrectIndex]
	}

	var strongIDs, weakIDs []string
	for _, f := range facts {
		shared := sharedKeywords(qtext, f.Keywords)
		overlap := question.OverlapRatio(f.Statement, qtext)
		switch {
		case shared >= v.cfg.StrongKeywordMatches || overlap >= v.cfg.StrongOverlap:
			strongIDs = append(strongIDs, f.ID)
		case shared >= 1 || overlap >= v.cfg.WeakOverlap:
			weakIDs = append(weakIDs, f.ID)
		}
	}

	if len(strongIDs) > 0 && v.plausibleRef(q.SourceReference) {
		return domain.SemanticValidationResult{
			IsValid:        true,
			Confidence:     strongMatchConfidence,
			MatchedFactIDs: strongIDs,
		}
	}
	if len(strongIDs) > 0 || len(weakIDs) > 0 {
		matched := append(strongIDs, weakIDs...)
		return domain.SemanticValidationResult{
			IsValid:        true,
			Confidence:     weakMatchConfidence,
			MatchedFactIDs: matched,
			Issues:         []string{"weak match: answer only loosely covered by extracted facts"},
		}
	}

	return v.adjudicate(ctx, q, qtext, sourceText)
}

var adjudicationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"supported":         map[string]any{"type": "boolean"},
		"confidence":        map[string]any{"type": "number"},
		"distractors_wrong": map[string]any{"type": "boolean"},
		"reason":            map[string]any{"type": "string"},
	},
	"required": []string{"supported", "confidence"},
}

type adjudicationPayload struct {
	Supported        bool    `json:"supported"`
	Confidence       float64 `json:"confidence"`
	DistractorsWrong bool    `json:"distractors_wrong"`
	Reason           string  `json:"reason"`
}

func (v *SemanticValidator) adjudicate(ctx context.Context, q domain.Question, qtext, sourceText string) domain.SemanticValidationResult {
	if len(sourceText) > maxSourceInPrompt {
		sourceText = sourceText[:maxSourceInPrompt]
	}

	genReq := openai.GenerateRequest{
		System: "You judge whether a quiz answer is supported by the given source text. " +
			"Answer strictly from the source; do not use outside knowledge.",
		Prompt:      adjudicationPrompt(q, sourceText),
		Temperature: 0,
		SchemaName:  "record_verdict",
		Schema:      adjudicationSchema,
	}

	var result openai.Result
	err := v.breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		result, _, callErr = reliability.Retry(ctx, v.log, "adjudicate_grounding", v.policy,
			func(ctx context.Context) (openai.Result, error) {
				return v.gen.Generate(ctx, genReq)
			})
		return callErr
	})
	if err != nil {
		return v.adjudicationFallback(q, err)
	}

	var verdict adjudicationPayload
	if uErr := json.Unmarshal([]byte(result.Content), &verdict); uErr != nil {
		return v.adjudicationFallback(q, uErr)
	}

	res := domain.SemanticValidationResult{Confidence: verdict.Confidence}
	res.IsValid = verdict.Supported && verdict.Confidence >= v.cfg.MinConfidence
	if !res.IsValid {
		reason := strings.TrimSpace(verdict.Reason)
		if reason == "" {
			reason = fmt.Sprintf("adjudicated confidence %.2f below minimum %.2f", verdict.Confidence, v.cfg.MinConfidence)
		}
		res.Issues = append(res.Issues, reason)
	}
	return res
}

// adjudicationFallback scores the question on source-reference plausibility
// when the adjudicator is unreachable. The configured minimum confidence
// still gates validity, so at the default threshold these questions fail;
// lowering MinConfidence below the trusted-reference score opts in to
// keeping them.
func (v *SemanticValidator) adjudicationFallback(q domain.Question, cause error) domain.SemanticValidationResult {
	v.log.Warn("grounding adjudication unavailable",
		"error", cause.Error(),
	)
	switch {
	case v.plausibleRef(q.SourceReference):
		return domain.SemanticValidationResult{
			IsValid:    trustedRefConfidence >= v.cfg.MinConfidence,
			Confidence: trustedRefConfidence,
			Issues:     []string{"adjudication unavailable; scored on plausible source reference"},
		}
	case strings.TrimSpace(q.SourceReference) != "":
		return domain.SemanticValidationResult{
			IsValid:    false,
			Confidence: untrustedRefConfidence,
			Issues:     []string{"adjudication unavailable and source reference length implausible"},
		}
	default:
		return domain.SemanticValidationResult{
			IsValid: false,
			Issues:  []string{"adjudication unavailable and no source reference to fall back on"},
		}
	}
}

func (v *SemanticValidator) plausibleRef(ref string) bool {
	n := len(strings.TrimSpace(ref))
	return n >= v.cfg.RefMinLen && n <= v.cfg.RefMaxLen
}

func sharedKeywords(text string, keywords []string) int {
	set := question.TokenSet(text)
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		lkw := strings.ToLower(strings.TrimSpace(kw))
		if lkw == "" {
			continue
		}
		if strings.Contains(lkw, " ") {
			if strings.Contains(lower, lkw) {
				n++
			}
			continue
		}
		if _, ok := set[lkw]; ok {
			n++
		}
	}
	return n
}

func adjudicationPrompt(q domain.Question, sourceText string) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(q.Prompt)
	b.WriteString("\n")
	for i, o := range q.Options {
		fmt.Fprintf(&b, "%c) %s\n", 'A'+i, o)
	}
	if q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options) {
		fmt.Fprintf(&b, "Stated correct answer: %c) %s\n", 'A'+q.CorrectIndex, q.Options[q.CorrectIndex])
	}
	b.WriteString("\nIs the stated answer supported by this source, and are the other options clearly wrong?\n\nSource:\n")
	b.WriteString(sourceText)
	return b.String()
}

// BatchStats aggregates a grounding pass over one question batch.
type BatchStats struct {
	Total   int
	Passed  int
	Failed  int
	Results []domain.SemanticValidationResult
}

// ValidateBatch grounds every question and keeps the ones that pass.
func (v *SemanticValidator) ValidateBatch(ctx context.Context, questions []domain.Question, facts []domain.Fact, sourceText string) ([]domain.Question, BatchStats) {
	stats := BatchStats{Total: len(questions)}
	kept := make([]domain.Question, 0, len(questions))

	for _, q := range questions {
		res := v.Validate(ctx, q, facts, sourceText)
		stats.Results = append(stats.Results, res)
		if res.IsValid {
			stats.Passed++
			kept = append(kept, q)
		} else {
			stats.Failed++
		}
	}

	v.log.Info("grounded question batch",
		"total", stats.Total,
		"passed", stats.Passed,
		"failed", stats.Failed,
	)
	return kept, stats
}
