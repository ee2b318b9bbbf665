package question

import (
	"testing"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

func newTestFilter(t *testing.T) *AdminFilter {
	t.Helper()
	f, err := NewAdminFilter(logger.NewNop())
	if err != nil {
		t.Fatalf("NewAdminFilter: %v", err)
	}
	return f
}

func TestClassifyAdminContent(t *testing.T) {
	f := newTestFilter(t)

	cases := []string{
		"How many parts does the final exam have?",
		"How many questions does the midterm exam contain?",
		"What is the main objective of this course?",
		"Which textbook should students buy for this class?",
		"Who is the professor teaching the seminar?",
		"When is the deadline for the second assignment?",
		"Wie viele Teile hat die Klausur?",
		"¿Cuántas partes tiene el examen?",
	}
	for _, text := range cases {
		c := f.Classify(text)
		if !c.IsAdmin {
			t.Errorf("Classify(%q).IsAdmin = false, want true", text)
		}
		if c.Reason == "" {
			t.Errorf("Classify(%q) admin verdict carries no reason", text)
		}
	}
}

func TestClassifySubjectContentPasses(t *testing.T) {
	f := newTestFilter(t)

	cases := []string{
		"What is the formula for WACC?",
		"Which hypothesis explains post-merger underperformance?",
		"How does diversification reduce unsystematic risk?",
		"What happens to bond prices when interest rates rise?",
	}
	for _, text := range cases {
		if c := f.Classify(text); c.IsAdmin {
			t.Errorf("Classify(%q) flagged subject matter as admin: %+v", text, c)
		}
	}
}

func TestFilterBatchRemovesOnlyAdmin(t *testing.T) {
	f := newTestFilter(t)

	questions := []domain.Question{
		{Prompt: "What is the formula for WACC?"},
		{Prompt: "How many parts does the final exam have?"},
		{Prompt: "Which factor drives exchange rate movements?"},
	}
	res := f.FilterBatch(questions)
	if len(res.Kept) != 2 {
		t.Fatalf("kept = %d, want 2", len(res.Kept))
	}
	if len(res.Removed) != 1 {
		t.Fatalf("removed = %d, want 1", len(res.Removed))
	}
	if res.Kept[0].Prompt != questions[0].Prompt || res.Kept[1].Prompt != questions[2].Prompt {
		t.Fatalf("kept the wrong questions: %+v", res.Kept)
	}
}
