package fallback

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
	"github.com/lumenlearn/coursegen-backend/internal/question"
)

//go:embed subjects.yaml
var subjectsYAML []byte

type subject struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// SubjectClassifier assigns a coarse subject label to source text by keyword
// vote. It exists so fallback content can at least sound like it belongs to
// the right discipline.
type SubjectClassifier struct {
	subjects []subject
}

func NewSubjectClassifier() (*SubjectClassifier, error) {
	var data struct {
		Subjects []subject `yaml:"subjects"`
	}
	if err := yaml.Unmarshal(subjectsYAML, &data); err != nil {
		return nil, fmt.Errorf("parse subject table: %w", err)
	}
	if len(data.Subjects) == 0 {
		return nil, fmt.Errorf("empty subject table")
	}
	return &SubjectClassifier{subjects: data.Subjects}, nil
}

// Classify returns the best-voted subject name, or "general studies" when no
// subject clears two keyword hits.
func (c *SubjectClassifier) Classify(text string) string {
	set := question.TokenSet(text)
	best, bestHits := "general studies", 1
	for _, s := range c.subjects {
		hits := 0
		for _, kw := range s.Keywords {
			if _, ok := set[strings.ToLower(kw)]; ok {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = s.Name, hits
		}
	}
	return best
}

// Generator produces deterministic templated content when generation plus
// validation yields nothing usable. The output is intentionally plain: its
// job is to never hand the learner an empty course.
type Generator struct {
	log        *logger.Logger
	classifier *SubjectClassifier
}

func NewGenerator(log *logger.Logger) (*Generator, error) {
	classifier, err := NewSubjectClassifier()
	if err != nil {
		return nil, err
	}
	return &Generator{
		log:        log.With("service", "FallbackGenerator"),
		classifier: classifier,
	}, nil
}

// keywords returns the most frequent significant tokens of text, ties broken
// by first appearance so output is deterministic.
func keywords(text string, limit int) []string {
	counts := map[string]int{}
	order := map[string]int{}
	for i, tok := range question.Tokens(text) {
		if len(tok) < 4 {
			continue
		}
		if _, seen := counts[tok]; !seen {
			order[tok] = i
		}
		counts[tok]++
	}
	out := make([]string, 0, len(counts))
	for tok := range counts {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return order[out[i]] < order[out[j]]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// firstSentenceWith finds a source sentence containing the keyword, for use
// as a truthful source reference.
func firstSentenceWith(text, keyword string) string {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(keyword))
	if idx < 0 {
		return ""
	}
	start := strings.LastIndexAny(lower[:idx], ".!?\n")
	if start < 0 {
		start = 0
	} else {
		start++
	}
	end := strings.IndexAny(lower[idx:], ".!?\n")
	if end < 0 {
		end = len(text)
	} else {
		end = idx + end + 1
	}
	return strings.TrimSpace(text[start:end])
}

// Chapters derives a templated chapter outline from the source keywords.
func (g *Generator) Chapters(sourceText string, count int) []domain.ChapterMeta {
	if count < 1 {
		count = 1
	}
	subjectName := g.classifier.Classify(sourceText)
	kws := keywords(sourceText, count*3)

	chapters := make([]domain.ChapterMeta, count)
	for i := 0; i < count; i++ {
		title := fmt.Sprintf("Key Topics in %s (Part %d)", titleCase(subjectName), i+1)
		var concepts []string
		for j := i * 3; j < (i+1)*3 && j < len(kws); j++ {
			concepts = append(concepts, kws[j])
		}
		if len(concepts) > 0 {
			title = fmt.Sprintf("Understanding %s", titleCase(concepts[0]))
		}
		chapters[i] = domain.ChapterMeta{
			Index:       i + 1,
			Title:       title,
			Summary:     fmt.Sprintf("A review of the material's coverage of %s.", strings.Join(concepts, ", ")),
			KeyConcepts: concepts,
		}
	}
	g.log.Warn("using fallback chapter outline",
		"subject", subjectName,
		"chapters", count,
	)
	return chapters
}

// Questions derives templated recall questions from the source keywords.
// Every question is structurally valid by construction.
func (g *Generator) Questions(chapterTitle, sourceText string, count int) []domain.Question {
	if count < 1 {
		count = 1
	}
	kws := keywords(sourceText, count+3)
	if len(kws) == 0 {
		kws = []string{"the material"}
	}

	questions := make([]domain.Question, 0, count)
	for i := 0; i < count; i++ {
		kw := kws[i%len(kws)]
		distractors := distractorsFor(kws, kw)
		q := domain.Question{
			Prompt: fmt.Sprintf("Which concept is discussed in %q in connection with %q?",
				chapterTitle, kw),
			Options: []string{
				fmt.Sprintf("%s, as covered in the material", titleCase(kw)),
				distractors[0],
				distractors[1],
				distractors[2],
			},
			CorrectIndex:    0,
			Explanation:     fmt.Sprintf("The source material discusses %s directly; review the chapter for details.", kw),
			SourceReference: firstSentenceWith(sourceText, kw),
			CognitiveLevel:  domain.LevelRemember,
			ConceptTested:   kw,
		}
		questions = append(questions, q)
	}
	g.log.Warn("using fallback questions",
		"chapter", chapterTitle,
		"count", len(questions),
	)
	return questions
}

var genericDistractors = []string{
	"A topic not covered by this material",
	"An unrelated administrative detail",
	"A concept from a different discipline",
	"Background reading outside the course scope",
}

func distractorsFor(kws []string, correct string) []string {
	out := make([]string, 0, 3)
	for _, kw := range kws {
		if kw == correct || len(out) == 3 {
			continue
		}
		out = append(out, fmt.Sprintf("%s, in an unrelated role", titleCase(kw)))
	}
	for i := 0; len(out) < 3; i++ {
		out = append(out, genericDistractors[i%len(genericDistractors)])
	}
	return out[:3]
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
