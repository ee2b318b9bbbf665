package question

import (
	"encoding/json"
	"testing"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
)

func TestNormalizeCanonicalFields(t *testing.T) {
	raw := map[string]any{
		"prompt":           "  What is opportunity cost?  ",
		"options":          []any{"Forgone alternative", "Sunk cost", "Fixed cost", "Marginal cost"},
		"correct_index":    float64(0),
		"explanation":      "The value of the next best alternative.",
		"source_reference": "Opportunity cost is the value of the forgone alternative.",
		"cognitive_level":  "Remember",
		"concept_tested":   "opportunity cost",
	}
	q := Normalize(raw)
	if q.Prompt != "What is opportunity cost?" {
		t.Fatalf("prompt = %q", q.Prompt)
	}
	if len(q.Options) != 4 || q.Options[0] != "Forgone alternative" {
		t.Fatalf("options = %v", q.Options)
	}
	if q.CorrectIndex != 0 {
		t.Fatalf("correct index = %d", q.CorrectIndex)
	}
	if q.CognitiveLevel != domain.LevelRemember {
		t.Fatalf("cognitive level = %q", q.CognitiveLevel)
	}
}

func TestNormalizeFieldAliases(t *testing.T) {
	cases := []struct {
		name string
		raw  map[string]any
		want int
	}{
		{"question/choices/letter answer", map[string]any{
			"question":       "Which account records retained earnings?",
			"choices":        []any{"Equity", "Assets", "Liabilities", "Revenue"},
			"correct_answer": "B",
		}, 1},
		{"letter with punctuation", map[string]any{
			"question_text": "Which statement shows cash movements?",
			"answers":       []any{"Balance sheet", "Income statement", "Cash flow statement", "Equity statement"},
			"answer":        "c)",
		}, 2},
		{"correct_answer as index", map[string]any{
			"text":           "Which ratio uses net income?",
			"options":        []any{"ROE", "Current ratio", "Quick ratio", "Debt ratio"},
			"correct_answer": float64(0),
		}, 0},
		{"camelCase index", map[string]any{
			"questionText": "Which curve shifts with fiscal stimulus?",
			"options":      []any{"IS", "LM", "Phillips", "Laffer"},
			"correctIndex": float64(0),
		}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := Normalize(tc.raw)
			if q.Prompt == "" {
				t.Fatalf("prompt alias not resolved: %v", tc.raw)
			}
			if len(q.Options) != 4 {
				t.Fatalf("options alias not resolved: %v", tc.raw)
			}
			if q.CorrectIndex != tc.want {
				t.Fatalf("correct index = %d, want %d", q.CorrectIndex, tc.want)
			}
		})
	}
}

func TestNormalizeUnresolvableIndex(t *testing.T) {
	cases := []map[string]any{
		{"prompt": "Q", "options": []any{"a", "b", "c", "d"}},
		{"prompt": "Q", "options": []any{"a", "b", "c", "d"}, "correct_index": 1.5},
		{"prompt": "Q", "options": []any{"a", "b", "c", "d"}, "answer": "E"},
		{"prompt": "Q", "options": []any{"a", "b", "c", "d"}, "answer": "AB"},
		nil,
	}
	for i, raw := range cases {
		if q := Normalize(raw); q.CorrectIndex != -1 {
			t.Errorf("case %d: correct index = %d, want -1", i, q.CorrectIndex)
		}
	}
}

func TestNormalizeExplanationAndSourceAliases(t *testing.T) {
	q := Normalize(map[string]any{
		"prompt":        "Why do bond prices fall when rates rise?",
		"options":       []any{"Discounting", "Inflation", "Default", "Liquidity"},
		"correct_index": float64(0),
		"rationale":     "Future coupons are discounted at a higher rate.",
		"source_quote":  "Bond prices move inversely to interest rates.",
		"topic":         "bond pricing",
	})
	if q.Explanation == "" || q.SourceReference == "" || q.ConceptTested == "" {
		t.Fatalf("aliases not resolved: %+v", q)
	}
}

func TestNormalizeSurvivesJSONRoundTrip(t *testing.T) {
	// Generated payloads arrive as json.Unmarshal output, so numbers are
	// float64 and arrays are []any.
	payload := `{"question":"Which market is most liquid?","choices":["FX","Real estate","Art","Private equity"],"correct_answer":0}`
	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	q := Normalize(raw)
	if q.Prompt != "Which market is most liquid?" || q.CorrectIndex != 0 || len(q.Options) != 4 {
		t.Fatalf("round-tripped payload mishandled: %+v", q)
	}
}
