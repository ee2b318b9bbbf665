package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/fallback"
	"github.com/lumenlearn/coursegen-backend/internal/grounding"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
	"github.com/lumenlearn/coursegen-backend/internal/platform/openai"
	"github.com/lumenlearn/coursegen-backend/internal/question"
)

const maxChapterTextInPrompt = 14000

// Config tunes one pipeline instance.
type Config struct {
	QuestionsPerChapter int
	WaveSize            int
	SemanticValidation  bool
	Temperature         float64
}

func DefaultPipelineConfig() Config {
	return Config{
		QuestionsPerChapter: 8,
		WaveSize:            5,
		SemanticValidation:  true,
		Temperature:         0.4,
	}
}

// QuestionStore persists accepted questions. The concrete datastore lives
// outside this subsystem.
type QuestionStore interface {
	SaveQuestions(ctx context.Context, chapterIndex int, questions []domain.Question) error
}

// Deps carries the explicitly wired collaborators.
type Deps struct {
	Client    *ReliableClient
	Validator *question.Validator
	Dedup     *question.DedupTracker
	Admin     *question.AdminFilter
	Facts     *grounding.FactExtractor
	Semantic  *grounding.SemanticValidator
	Fallback  *fallback.Generator
	Store     QuestionStore
}

// Pipeline drives question generation for one course: generate, validate,
// filter, ground, and degrade to templated content rather than ever
// returning an empty chapter.
type Pipeline struct {
	log  *logger.Logger
	deps Deps
	cfg  Config
}

func New(log *logger.Logger, deps Deps, cfg Config) (*Pipeline, error) {
	if deps.Client == nil || deps.Validator == nil || deps.Dedup == nil || deps.Admin == nil || deps.Fallback == nil {
		return nil, fmt.Errorf("missing pipeline dependency")
	}
	if cfg.WaveSize < 3 {
		cfg.WaveSize = 3
	}
	if cfg.WaveSize > 20 {
		cfg.WaveSize = 20
	}
	if cfg.QuestionsPerChapter < 1 {
		cfg.QuestionsPerChapter = DefaultPipelineConfig().QuestionsPerChapter
	}
	return &Pipeline{
		log:  log.With("service", "Pipeline"),
		deps: deps,
		cfg:  cfg,
	}, nil
}

var questionBatchSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"questions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt":           map[string]any{"type": "string"},
					"options":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"correct_index":    map[string]any{"type": "integer"},
					"explanation":      map[string]any{"type": "string"},
					"source_reference": map[string]any{"type": "string"},
					"cognitive_level":  map[string]any{"type": "string", "enum": []string{"remember", "understand", "apply"}},
					"concept_tested":   map[string]any{"type": "string"},
				},
				"required": []string{"prompt", "options", "correct_index"},
			},
		},
	},
	"required": []string{"questions"},
}

// ChapterResult reports what one chapter pass produced and dropped.
type ChapterResult struct {
	ChapterIndex      int
	Questions         []domain.Question
	Rejected          int
	AdminRemoved      int
	DuplicatesRemoved int
	GroundingFailed   int
	FallbackUsed      bool
}

// GenerateChapterQuestions runs the full quality funnel for one chapter.
func (p *Pipeline) GenerateChapterQuestions(ctx context.Context, ch domain.ChapterBoundary) (ChapterResult, error) {
	res := ChapterResult{ChapterIndex: ch.Index}

	raw, err := p.generateRaw(ctx, ch)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		p.log.Warn("chapter generation failed, degrading to fallback content",
			"chapter", ch.Index,
			"error", err.Error(),
		)
		raw = nil
	}

	batch := p.deps.Validator.ValidateBatch(raw, ch.Text)
	res.Rejected = batch.Rejected

	adminRes := p.deps.Admin.FilterBatch(batch.Accepted)
	res.AdminRemoved = len(adminRes.Removed)

	kept, removedDups := p.deps.Dedup.FilterQuestions(adminRes.Kept, ch.Index)
	res.DuplicatesRemoved = len(removedDups)

	if p.cfg.SemanticValidation && p.deps.Facts != nil && p.deps.Semantic != nil && len(kept) > 0 {
		facts, fErr := p.deps.Facts.Extract(ctx, grounding.ExtractRequest{
			SourceText:   ch.Text,
			ChapterTitle: ch.Title,
		})
		if fErr != nil {
			return res, fErr
		}
		grounded, stats := p.deps.Semantic.ValidateBatch(ctx, kept, facts, ch.Text)
		res.GroundingFailed = stats.Failed
		kept = grounded
	}

	if len(kept) == 0 {
		kept = p.deps.Fallback.Questions(ch.Title, ch.Text, p.cfg.QuestionsPerChapter)
		res.FallbackUsed = true
	}
	res.Questions = kept

	if p.deps.Store != nil {
		if sErr := p.deps.Store.SaveQuestions(ctx, ch.Index, kept); sErr != nil {
			return res, fmt.Errorf("persist chapter %d questions: %w", ch.Index, sErr)
		}
	}

	p.log.Info("chapter questions ready",
		"chapter", ch.Index,
		"accepted", len(kept),
		"rejected", res.Rejected,
		"admin_removed", res.AdminRemoved,
		"duplicates_removed", res.DuplicatesRemoved,
		"grounding_failed", res.GroundingFailed,
		"fallback_used", res.FallbackUsed,
	)
	return res, nil
}

func (p *Pipeline) generateRaw(ctx context.Context, ch domain.ChapterBoundary) ([]domain.Question, error) {
	text := ch.Text
	if len(text) > maxChapterTextInPrompt {
		text = text[:maxChapterTextInPrompt]
	}

	result, err := p.deps.Client.Generate(ctx, openai.GenerateRequest{
		System: "You write multiple-choice quiz questions strictly grounded in the " +
			"provided source text. Each question has exactly 4 options, one correct " +
			"answer, an explanation, and a literal source quote.",
		Prompt: fmt.Sprintf("Write %d questions for the chapter %q.\n\nSource text:\n%s",
			p.cfg.QuestionsPerChapter, ch.Title, text),
		Temperature: p.cfg.Temperature,
		SchemaName:  "record_questions",
		Schema:      questionBatchSchema,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal([]byte(result.Content), &payload); err != nil {
		return nil, fmt.Errorf("decode question batch: %w", err)
	}

	questions := make([]domain.Question, 0, len(payload.Questions))
	for _, raw := range payload.Questions {
		q := question.Normalize(raw)
		if strings.TrimSpace(q.Prompt) == "" {
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// GenerateCourseQuestions processes chapters in bounded-concurrency waves:
// each wave dispatches up to WaveSize chapters and barrier-synchronizes
// before the next one starts.
func (p *Pipeline) GenerateCourseQuestions(ctx context.Context, bounds []domain.ChapterBoundary) ([]ChapterResult, error) {
	results := make([]ChapterResult, len(bounds))

	for start := 0; start < len(bounds); start += p.cfg.WaveSize {
		end := start + p.cfg.WaveSize
		if end > len(bounds) {
			end = len(bounds)
		}

		g, waveCtx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.WaveSize)
		var mu sync.Mutex
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				res, err := p.GenerateChapterQuestions(waveCtx, bounds[i])
				if err != nil {
					return err
				}
				mu.Lock()
				results[i] = res
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}
