package fallback

import (
	"strings"
	"testing"

	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

const econSource = `The market clears when supply equals demand. Inflation erodes
purchasing power, so the central bank adjusts the interest rate. Investment
in a diversified portfolio spreads risk across capital markets, and trade
policy shifts both supply and demand over time.`

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(logger.NewNop())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestClassifySubjects(t *testing.T) {
	c, err := NewSubjectClassifier()
	if err != nil {
		t.Fatalf("NewSubjectClassifier: %v", err)
	}

	cases := []struct {
		text string
		want string
	}{
		{econSource, "economics"},
		{"The derivative of a polynomial function follows from the theorem, and the proof uses a matrix identity.", "mathematics"},
		{"The empire collapsed in that century after the revolution dissolved the monarchy and the treaty failed.", "history"},
		{"A short note about nothing in particular.", "general studies"},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.text); got != tc.want {
			t.Errorf("Classify(%q...) = %q, want %q", tc.text[:24], got, tc.want)
		}
	}
}

func TestChaptersAreDeterministic(t *testing.T) {
	g := newTestGenerator(t)

	a := g.Chapters(econSource, 3)
	b := g.Chapters(econSource, 3)
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("chapters = %d/%d, want 3", len(a), len(b))
	}
	for i := range a {
		if a[i].Title != b[i].Title || a[i].Summary != b[i].Summary {
			t.Fatalf("fallback chapters must be deterministic: %+v vs %+v", a[i], b[i])
		}
		if a[i].Index != i+1 {
			t.Fatalf("chapter index = %d, want %d", a[i].Index, i+1)
		}
	}
}

func TestQuestionsAreStructurallyValid(t *testing.T) {
	g := newTestGenerator(t)

	questions := g.Questions("Understanding Markets", econSource, 4)
	if len(questions) != 4 {
		t.Fatalf("questions = %d, want 4", len(questions))
	}
	for i, q := range questions {
		if len(strings.TrimSpace(q.Prompt)) < 10 {
			t.Fatalf("question %d prompt too short: %q", i, q.Prompt)
		}
		if len(q.Options) != 4 {
			t.Fatalf("question %d has %d options", i, len(q.Options))
		}
		seen := map[string]bool{}
		for _, o := range q.Options {
			key := strings.ToLower(o)
			if seen[key] {
				t.Fatalf("question %d has duplicate option %q", i, o)
			}
			seen[key] = true
		}
		if q.CorrectIndex != 0 {
			t.Fatalf("question %d correct index = %d", i, q.CorrectIndex)
		}
		if q.SourceReference == "" {
			t.Fatalf("question %d has no source reference", i)
		}
		if !strings.Contains(strings.ToLower(q.SourceReference), q.ConceptTested) {
			t.Fatalf("question %d reference %q does not contain its concept %q",
				i, q.SourceReference, q.ConceptTested)
		}
	}
}

func TestQuestionsSurviveEmptySource(t *testing.T) {
	g := newTestGenerator(t)

	questions := g.Questions("Anything", "", 2)
	if len(questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(questions))
	}
	for i, q := range questions {
		if len(q.Options) != 4 {
			t.Fatalf("question %d has %d options", i, len(q.Options))
		}
	}
}
