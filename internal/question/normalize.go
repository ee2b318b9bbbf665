package question

import (
	"math"
	"strings"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
)

// Normalize converts a loosely-shaped generated record into the canonical
// Question. Generated JSON uses several equivalent field names for the same
// concept; all the optional-field handling happens here, once, so the
// validator only ever sees the canonical shape. An unresolvable correct
// index is returned as -1.
func Normalize(raw map[string]any) domain.Question {
	q := domain.Question{CorrectIndex: -1}
	if raw == nil {
		return q
	}

	q.Prompt = firstString(raw, "prompt", "question", "question_text", "questionText", "text")
	q.Explanation = firstString(raw, "explanation", "rationale", "reason")
	q.SourceReference = firstString(raw, "source_reference", "sourceReference", "source_quote", "sourceQuote", "source", "quote", "evidence")
	q.ConceptTested = firstString(raw, "concept_tested", "conceptTested", "concept", "topic")

	if lvl := firstString(raw, "cognitive_level", "cognitiveLevel", "bloom_level", "level"); lvl != "" {
		q.CognitiveLevel = domain.CognitiveLevel(strings.ToLower(strings.TrimSpace(lvl)))
	}

	q.Options = stringSlice(firstValue(raw, "options", "choices", "answers"))

	if idx, ok := intValue(firstValue(raw, "correct_index", "correctIndex", "correct_option_index", "correctOptionIndex")); ok {
		q.CorrectIndex = idx
	} else if v := firstValue(raw, "correct_answer", "correctAnswer"); v != nil {
		// correct_answer appears both as a 0-based index and as a letter.
		if idx, ok := intValue(v); ok {
			q.CorrectIndex = idx
		} else if s, ok := v.(string); ok {
			q.CorrectIndex = letterIndex(s)
		}
	}
	if q.CorrectIndex < 0 {
		if s := firstString(raw, "answer", "correct_letter", "correctLetter", "correct_option", "correctOption"); s != "" {
			q.CorrectIndex = letterIndex(s)
		}
	}
	return q
}

// letterIndex maps "A".."D" (any case, trailing punctuation tolerated) to
// 0..3, or -1.
func letterIndex(s string) int {
	s = strings.TrimSpace(strings.ToUpper(s))
	s = strings.TrimRight(s, ".):")
	if len(s) != 1 {
		return -1
	}
	if s[0] < 'A' || s[0] > 'D' {
		return -1
	}
	return int(s[0] - 'A')
}

func firstValue(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		out := make([]string, len(vv))
		for i, s := range vv {
			out[i] = strings.TrimSpace(s)
		}
		return out
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, strings.TrimSpace(s))
			} else {
				out = append(out, "")
			}
		}
		return out
	}
	return nil
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}
