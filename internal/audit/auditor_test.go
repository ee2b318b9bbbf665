package audit

import (
	"strings"
	"testing"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

func newTestAuditor(t *testing.T) *Auditor {
	t.Helper()
	a, err := NewAuditor(logger.NewNop())
	if err != nil {
		t.Fatalf("NewAuditor: %v", err)
	}
	return a
}

const riskSource = `Portfolio Theory

How does diversification affect unsystematic risk? Diversification reduces
unsystematic risk in a portfolio by spreading exposure across assets whose
returns are not perfectly correlated. Systematic risk cannot be diversified
away and is priced by the market.`

func groundedQuestion() domain.Question {
	return domain.Question{
		Prompt:          "How does diversification affect unsystematic risk?",
		Options:         []string{"It reduces it", "It magnifies it", "It taxes it", "It ignores it"},
		CorrectIndex:    0,
		SourceReference: "Diversification reduces unsystematic risk in a portfolio",
		CognitiveLevel:  domain.LevelUnderstand,
	}
}

func TestAuditQuestionNoSourceIsSentinel(t *testing.T) {
	a := newTestAuditor(t)

	if got := a.AuditQuestion(groundedQuestion(), "   "); got != NotAuditable {
		t.Fatalf("score = %v, want %v sentinel", got, NotAuditable)
	}
}

func TestAuditQuestionGroundedScoresHigh(t *testing.T) {
	a := newTestAuditor(t)

	got := a.AuditQuestion(groundedQuestion(), riskSource)
	if got < 90 {
		t.Fatalf("grounded question score = %v, want >= 90", got)
	}
	if got > 100 {
		t.Fatalf("score must be clamped to 100, got %v", got)
	}
}

func TestAuditQuestionUngroundedScoresLow(t *testing.T) {
	a := newTestAuditor(t)

	q := domain.Question{
		Prompt:       "Which painter finished a triptych first?",
		Options:      []string{"Bosch", "Bruegel", "Vermeer", "Rembrandt"},
		CorrectIndex: 0,
	}
	got := a.AuditQuestion(q, riskSource)
	if got >= lowScoreThreshold {
		t.Fatalf("ungrounded question score = %v, want < %d", got, lowScoreThreshold)
	}
}

func TestAuditQuestionPenalizesSourcedDistractors(t *testing.T) {
	a := newTestAuditor(t)

	clean := groundedQuestion()
	dirty := groundedQuestion()
	dirty.Options[1] = "Systematic risk cannot be diversified away"

	cleanScore := a.AuditQuestion(clean, riskSource)
	dirtyScore := a.AuditQuestion(dirty, riskSource)
	if dirtyScore >= cleanScore {
		t.Fatalf("distractor present in source must cost points: clean %v, dirty %v", cleanScore, dirtyScore)
	}
}

func TestCountScoreBands(t *testing.T) {
	cases := []struct {
		n    int
		want float64
	}{
		{0, 0},
		{3, 60},
		{5, 100},
		{15, 100},
		{30, 50},
	}
	for _, tc := range cases {
		if got := countScore(tc.n); got != tc.want {
			t.Errorf("countScore(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}
}

func TestAuditChapterTitleAndLowScorers(t *testing.T) {
	a := newTestAuditor(t)

	ungrounded := domain.Question{
		Prompt:       "Which painter finished a triptych first?",
		Options:      []string{"Bosch", "Bruegel", "Vermeer", "Rembrandt"},
		CorrectIndex: 0,
	}
	in := ChapterInput{
		ChapterIndex: 3,
		Title:        "Renaissance Painting",
		SourceText:   riskSource,
		Questions:    []domain.Question{ungrounded, ungrounded, ungrounded, ungrounded, ungrounded},
	}
	res := a.AuditChapter(in)
	if res.Score < 0 {
		t.Fatalf("chapter with source must be auditable, got %v", res.Score)
	}
	if len(res.Issues) < 2 {
		t.Fatalf("expected title-absent and low-scorer issues, got %v", res.Issues)
	}
	if len(res.Recommendations) == 0 {
		t.Fatalf("issues must come with recommendations")
	}

	foundTitle, foundLow := false, false
	for _, issue := range res.Issues {
		if strings.Contains(issue, "title") {
			foundTitle = true
		}
		if strings.Contains(issue, "score below") {
			foundLow = true
		}
	}
	if !foundTitle || !foundLow {
		t.Fatalf("issues = %v", res.Issues)
	}
}

func TestAuditChapterGrounded(t *testing.T) {
	a := newTestAuditor(t)

	questions := make([]domain.Question, 5)
	for i := range questions {
		questions[i] = groundedQuestion()
	}
	res := a.AuditChapter(ChapterInput{
		ChapterIndex: 1,
		Title:        "Portfolio Theory",
		SourceText:   riskSource,
		Questions:    questions,
	})
	if res.Score < 85 {
		t.Fatalf("grounded chapter score = %v, want >= 85", res.Score)
	}
	if len(res.Issues) != 0 {
		t.Fatalf("unexpected issues: %v", res.Issues)
	}
}

func TestAuditChapterWithoutSource(t *testing.T) {
	a := newTestAuditor(t)

	res := a.AuditChapter(ChapterInput{ChapterIndex: 2, Title: "Anything"})
	if res.Score != NotAuditable {
		t.Fatalf("score = %v, want sentinel", res.Score)
	}
	if len(res.Issues) == 0 {
		t.Fatalf("not-auditable chapter must carry an issue")
	}
}

func TestAuditCourseAveragesAuditableChapters(t *testing.T) {
	a := newTestAuditor(t)

	questions := []domain.Question{groundedQuestion(), groundedQuestion(), groundedQuestion(), groundedQuestion(), groundedQuestion()}
	course := a.AuditCourse([]ChapterInput{
		{ChapterIndex: 1, Title: "Portfolio Theory", SourceText: riskSource, Questions: questions},
		{ChapterIndex: 2, Title: "Missing Material"},
	})
	if course.Score < 0 || course.Score != course.Chapters[0].Score {
		t.Fatalf("course score must average only auditable chapters: %v vs %v",
			course.Score, course.Chapters[0].Score)
	}
	found := false
	for _, issue := range course.Issues {
		if strings.HasPrefix(issue, "chapter 2:") {
			found = true
		}
	}
	if !found {
		t.Fatalf("course issues must name the unauditable chapter, got %v", course.Issues)
	}
}

func TestAuditCourseAllUnauditable(t *testing.T) {
	a := newTestAuditor(t)

	course := a.AuditCourse([]ChapterInput{
		{ChapterIndex: 1, Title: "A"},
		{ChapterIndex: 2, Title: "B"},
	})
	if course.Score != NotAuditable {
		t.Fatalf("score = %v, want sentinel", course.Score)
	}
}
