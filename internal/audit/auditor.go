package audit

import (
	"fmt"
	"strings"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
	"github.com/lumenlearn/coursegen-backend/internal/question"
)

// NotAuditable is returned when no source text exists to score against.
// A low score and "no data" mean different things operationally, so the
// sentinel is never conflated with zero.
const NotAuditable = -1

const lowScoreThreshold = 40

// Auditor scores persisted content for grounding quality. It only scores
// and recommends; nothing in the pipeline blocks on it.
type Auditor struct {
	log       *logger.Logger
	ambiguity *question.AmbiguityDetector
}

func NewAuditor(log *logger.Logger) (*Auditor, error) {
	amb, err := question.NewAmbiguityDetector(log)
	if err != nil {
		return nil, err
	}
	return &Auditor{
		log:       log.With("service", "QualityAuditor"),
		ambiguity: amb,
	}, nil
}

// AuditQuestion scores one question 0-100 against its source text, or
// NotAuditable when the source is missing.
func (a *Auditor) AuditQuestion(q domain.Question, sourceText string) float64 {
	if strings.TrimSpace(sourceText) == "" {
		return NotAuditable
	}

	// (a) prompt grounding: share of prompt keywords present in source.
	promptScore := question.OverlapRatio(q.Prompt, sourceText) * 30

	// (b) answer grounding: the correct option or its declared reference
	// should be traceable to the source.
	answerConf := 0.0
	if q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options) {
		answerConf = presenceConfidence(q.Options[q.CorrectIndex], sourceText)
	}
	if refConf := presenceConfidence(q.SourceReference, sourceText); refConf > answerConf {
		answerConf = refConf
	}
	answerScore := answerConf * 35

	// (c) distractor cleanliness: a distractor that itself appears in the
	// source hints at a second defensible answer.
	cleanliness := 25.0
	for i, o := range q.Options {
		if i == q.CorrectIndex {
			continue
		}
		if presenceConfidence(o, sourceText) >= 0.9 {
			cleanliness -= 8
		}
	}
	if cleanliness < 0 {
		cleanliness = 0
	}

	// (d) ambiguity-free bonus, scaled down per detected issue.
	issues := a.ambiguity.Detect(q.Prompt, q.Options, q.CorrectIndex, sourceText)
	ambiguityBonus := 10.0 / float64(1+len(issues))

	score := promptScore + answerScore + cleanliness + ambiguityBonus

	if q.SourceReference != "" && presenceConfidence(q.SourceReference, sourceText) >= 0.9 {
		score += 5
	}
	switch q.CognitiveLevel {
	case domain.LevelRemember:
		score++
	case domain.LevelUnderstand:
		score += 2
	case domain.LevelApply:
		score += 3
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// presenceConfidence estimates whether text appears in source: 1.0 for a
// normalized substring hit, else the share of its tokens found in source.
func presenceConfidence(text, source string) float64 {
	needle := normalizeForSearch(text)
	if needle == "" {
		return 0
	}
	if strings.Contains(normalizeForSearch(source), needle) {
		return 1
	}
	return question.OverlapRatio(text, source)
}

func normalizeForSearch(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ChapterInput is one chapter's audited material.
type ChapterInput struct {
	ChapterIndex int
	Title        string
	SourceText   string
	Questions    []domain.Question
}

// ChapterAudit is the aggregated verdict for one chapter.
type ChapterAudit struct {
	ChapterIndex    int       `json:"chapter_index"`
	Score           float64   `json:"score"`
	QuestionScores  []float64 `json:"question_scores,omitempty"`
	Issues          []string  `json:"issues,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// AuditChapter blends the mean question score (60%) with title presence in
// source (25%) and question-count appropriateness (15%).
func (a *Auditor) AuditChapter(in ChapterInput) ChapterAudit {
	res := ChapterAudit{ChapterIndex: in.ChapterIndex}

	if strings.TrimSpace(in.SourceText) == "" {
		res.Score = NotAuditable
		res.Issues = append(res.Issues, "no source text available; chapter is not auditable")
		return res
	}

	sum := 0.0
	low := 0
	for _, q := range in.Questions {
		s := a.AuditQuestion(q, in.SourceText)
		res.QuestionScores = append(res.QuestionScores, s)
		sum += s
		if s < lowScoreThreshold {
			low++
		}
	}
	meanQuestion := 0.0
	if len(in.Questions) > 0 {
		meanQuestion = sum / float64(len(in.Questions))
	}

	titleScore := 0.0
	titleFound := presenceConfidence(in.Title, in.SourceText) >= 0.9
	if titleFound {
		titleScore = 100
	}

	res.Score = 0.60*meanQuestion + 0.25*titleScore + 0.15*countScore(len(in.Questions))

	if !titleFound {
		res.Issues = append(res.Issues, fmt.Sprintf("chapter title %q not found in source text", in.Title))
		res.Recommendations = append(res.Recommendations, "re-run segmentation or regenerate the chapter outline against the source")
	}
	if n := len(in.Questions); n > 0 && low*5 > n {
		res.Issues = append(res.Issues, fmt.Sprintf("%d of %d questions score below %d", low, n, lowScoreThreshold))
		res.Recommendations = append(res.Recommendations, "regenerate the low-scoring questions with tighter source grounding")
	}

	a.log.Debug("audited chapter",
		"chapter", in.ChapterIndex,
		"score", res.Score,
		"questions", len(in.Questions),
	)
	return res
}

// countScore rates question-count appropriateness: full marks for 5-15
// questions, proportionally less outside that band.
func countScore(n int) float64 {
	switch {
	case n == 0:
		return 0
	case n < 5:
		return float64(n) / 5 * 100
	case n <= 15:
		return 100
	default:
		return 15.0 / float64(n) * 100
	}
}

// CourseAudit is the roll-up over all chapters.
type CourseAudit struct {
	Score    float64        `json:"score"`
	Chapters []ChapterAudit `json:"chapters"`
	Issues   []string       `json:"issues,omitempty"`
}

// AuditCourse audits every chapter and averages the auditable ones. A course
// with no auditable chapter is itself not auditable.
func (a *Auditor) AuditCourse(inputs []ChapterInput) CourseAudit {
	var course CourseAudit

	sum := 0.0
	auditable := 0
	for _, in := range inputs {
		ch := a.AuditChapter(in)
		course.Chapters = append(course.Chapters, ch)
		if ch.Score >= 0 {
			sum += ch.Score
			auditable++
		}
		for _, issue := range ch.Issues {
			course.Issues = append(course.Issues, fmt.Sprintf("chapter %d: %s", ch.ChapterIndex, issue))
		}
	}

	if auditable == 0 {
		course.Score = NotAuditable
	} else {
		course.Score = sum / float64(auditable)
	}

	a.log.Info("audited course",
		"chapters", len(inputs),
		"auditable", auditable,
		"score", course.Score,
	)
	return course
}
