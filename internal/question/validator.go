package question

import (
	"fmt"
	"strings"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

const duplicateWarningPrefix = "near-duplicate of batch question"

// ValidatorConfig carries the structural limits and the calibration
// thresholds. Thresholds are empirical; they are surfaced here so they can
// be re-tuned without touching the checks.
type ValidatorConfig struct {
	MinPromptLen              int
	MinExplanationLen         int
	SourceRefMinLen           int
	SourceRefMaxLen           int
	InBatchDupThreshold       float64
	OptionSimilarityThreshold float64
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinPromptLen:              10,
		MinExplanationLen:         10,
		SourceRefMinLen:           15,
		SourceRefMaxLen:           300,
		InBatchDupThreshold:       0.8,
		OptionSimilarityThreshold: 0.85,
	}
}

// Validator runs the structural contract checks over canonical questions and
// attempts an auto-fix when only fixable structural errors are present.
type Validator struct {
	log       *logger.Logger
	cfg       ValidatorConfig
	ambiguity *AmbiguityDetector
}

func NewValidator(log *logger.Logger, cfg ValidatorConfig) (*Validator, error) {
	amb, err := NewAmbiguityDetector(log)
	if err != nil {
		return nil, err
	}
	return &Validator{
		log:       log.With("service", "QuestionValidator"),
		cfg:       cfg,
		ambiguity: amb,
	}, nil
}

// Validate checks one question against the structural contract and the
// already-accepted questions of the same call. sourceText may be empty; the
// ambiguity scan skips itself when it is.
func (v *Validator) Validate(q domain.Question, accepted []domain.Question, sourceText string) domain.ValidationResult {
	res := v.check(q, accepted, sourceText)
	if res.IsValid {
		return res
	}

	fixed, ok := v.fix(q)
	if !ok {
		return res
	}
	fixedRes := v.check(fixed, accepted, sourceText)
	if fixedRes.IsValid {
		res.Fixed = &fixed
	}
	return res
}

func (v *Validator) check(q domain.Question, accepted []domain.Question, sourceText string) domain.ValidationResult {
	var res domain.ValidationResult

	addErr := func(field, msg string) {
		res.Errors = append(res.Errors, domain.ValidationIssue{Field: field, Message: msg, Severity: domain.SeverityError})
	}
	addWarn := func(field, msg string) {
		res.Warnings = append(res.Warnings, domain.ValidationIssue{Field: field, Message: msg, Severity: domain.SeverityWarning})
	}

	if len(strings.TrimSpace(q.Prompt)) < v.cfg.MinPromptLen {
		addErr("prompt", fmt.Sprintf("prompt missing or shorter than %d characters", v.cfg.MinPromptLen))
	}
	if len(q.Options) != 4 {
		addErr("options", fmt.Sprintf("expected exactly 4 options, got %d", len(q.Options)))
	}
	for i, o := range q.Options {
		if strings.TrimSpace(o) == "" {
			addErr("options", fmt.Sprintf("option %d is empty", i))
		}
	}
	seen := make(map[string]int, len(q.Options))
	for i, o := range q.Options {
		key := strings.ToLower(strings.TrimSpace(o))
		if key == "" {
			continue
		}
		if j, dup := seen[key]; dup {
			addErr("options", fmt.Sprintf("options %d and %d are duplicates", j, i))
		} else {
			seen[key] = i
		}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex > 3 {
		addErr("correct_index", "correct option index is not resolvable to 0-3")
	}

	for _, prev := range accepted {
		if sim := Jaccard(q.Prompt, prev.Prompt); sim > v.cfg.InBatchDupThreshold {
			addWarn("prompt", fmt.Sprintf("%s (similarity %.2f)", duplicateWarningPrefix, sim))
			break
		}
	}

	if len(strings.TrimSpace(q.Explanation)) < v.cfg.MinExplanationLen {
		addWarn("explanation", fmt.Sprintf("explanation missing or shorter than %d characters", v.cfg.MinExplanationLen))
	}

	refLen := len(strings.TrimSpace(q.SourceReference))
	switch {
	case refLen < v.cfg.SourceRefMinLen:
		addWarn("source_reference", fmt.Sprintf("source reference missing or shorter than %d characters", v.cfg.SourceRefMinLen))
	case refLen > v.cfg.SourceRefMaxLen:
		addWarn("source_reference", fmt.Sprintf("source reference longer than %d characters, implausible as a quote", v.cfg.SourceRefMaxLen))
	}

	if q.CognitiveLevel != "" && !q.CognitiveLevel.Valid() {
		addWarn("cognitive_level", fmt.Sprintf("unknown cognitive level %q", q.CognitiveLevel))
	}

	for i := 0; i < len(q.Options); i++ {
		for j := i + 1; j < len(q.Options); j++ {
			if sim := Jaccard(q.Options[i], q.Options[j]); sim > v.cfg.OptionSimilarityThreshold {
				addWarn("options", fmt.Sprintf("options %d and %d are nearly identical (similarity %.2f)", i, j, sim))
			}
		}
	}

	for _, issue := range v.ambiguity.Detect(q.Prompt, q.Options, q.CorrectIndex, sourceText) {
		addWarn("prompt", issue)
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

var placeholderOptions = []string{
	"None of the above",
	"All of the above",
	"Not applicable",
	"Cannot be determined",
}

// fix repairs the repairable structural errors: pads or truncates the option
// list to 4, replaces empty options, and defaults an unresolvable correct
// index to 0. It reports false when nothing was changed.
func (v *Validator) fix(q domain.Question) (domain.Question, bool) {
	fixed := q
	fixed.Options = append([]string(nil), q.Options...)
	changed := false

	used := make(map[string]bool)
	for _, o := range fixed.Options {
		used[strings.ToLower(strings.TrimSpace(o))] = true
	}
	nextPlaceholder := func() string {
		for _, p := range placeholderOptions {
			if !used[strings.ToLower(p)] {
				used[strings.ToLower(p)] = true
				return p
			}
		}
		return fmt.Sprintf("Placeholder option %d", len(used)+1)
	}

	for i, o := range fixed.Options {
		if strings.TrimSpace(o) == "" {
			fixed.Options[i] = nextPlaceholder()
			changed = true
		}
	}
	for len(fixed.Options) < 4 {
		fixed.Options = append(fixed.Options, nextPlaceholder())
		changed = true
	}
	if len(fixed.Options) > 4 {
		if fixed.CorrectIndex > 3 && fixed.CorrectIndex < len(fixed.Options) {
			// Keep the correct option reachable before truncating.
			fixed.Options[3], fixed.Options[fixed.CorrectIndex] = fixed.Options[fixed.CorrectIndex], fixed.Options[3]
			fixed.CorrectIndex = 3
		}
		fixed.Options = fixed.Options[:4]
		changed = true
	}
	if fixed.CorrectIndex < 0 || fixed.CorrectIndex > 3 {
		fixed.CorrectIndex = 0
		changed = true
	}
	return fixed, changed
}

// BatchResult aggregates a ValidateBatch pass.
type BatchResult struct {
	Accepted          []domain.Question
	Total             int
	Valid             int
	Fixed             int
	Rejected          int
	DuplicatesRemoved int
}

// ValidateBatch partitions the input into accepted (valid or fixed) and
// rejected questions, dropping items whose prompt duplicates an earlier
// question in the same batch.
func (v *Validator) ValidateBatch(questions []domain.Question, sourceText string) BatchResult {
	res := BatchResult{Total: len(questions)}

	for _, q := range questions {
		vr := v.Validate(q, res.Accepted, sourceText)

		switch {
		case vr.IsValid && hasDuplicateWarning(vr):
			res.DuplicatesRemoved++
		case vr.IsValid:
			res.Accepted = append(res.Accepted, q)
			res.Valid++
		case vr.Fixed != nil:
			res.Accepted = append(res.Accepted, *vr.Fixed)
			res.Fixed++
		default:
			res.Rejected++
		}
	}

	v.log.Info("validated question batch",
		"total", res.Total,
		"valid", res.Valid,
		"fixed", res.Fixed,
		"rejected", res.Rejected,
		"duplicates_removed", res.DuplicatesRemoved,
	)
	return res
}

func hasDuplicateWarning(vr domain.ValidationResult) bool {
	for _, w := range vr.Warnings {
		if strings.HasPrefix(w.Message, duplicateWarningPrefix) {
			return true
		}
	}
	return false
}
