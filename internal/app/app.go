package app

import (
	"time"

	"github.com/lumenlearn/coursegen-backend/internal/audit"
	"github.com/lumenlearn/coursegen-backend/internal/cache"
	"github.com/lumenlearn/coursegen-backend/internal/fallback"
	"github.com/lumenlearn/coursegen-backend/internal/grounding"
	"github.com/lumenlearn/coursegen-backend/internal/pipeline"
	"github.com/lumenlearn/coursegen-backend/internal/platform/envutil"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
	"github.com/lumenlearn/coursegen-backend/internal/platform/openai"
	"github.com/lumenlearn/coursegen-backend/internal/question"
	"github.com/lumenlearn/coursegen-backend/internal/reliability"
	"github.com/lumenlearn/coursegen-backend/internal/segment"
)

// Config is the environment-driven configuration surface for one process.
type Config struct {
	LogMode             string
	RedisAddr           string
	ResponseCacheSize   int
	ResponseCacheTTL    time.Duration
	FactCacheTTL        time.Duration
	QuestionsPerChapter int
	WaveSize            int
	SemanticValidation  bool
	Temperature         float64
	DedupThreshold      float64
}

func LoadConfig() Config {
	return Config{
		LogMode:             envutil.Str("LOG_MODE", "development"),
		RedisAddr:           envutil.Str("REDIS_ADDR", ""),
		ResponseCacheSize:   envutil.Int("RESPONSE_CACHE_SIZE", 512),
		ResponseCacheTTL:    envutil.Duration("RESPONSE_CACHE_TTL", time.Hour),
		FactCacheTTL:        envutil.Duration("FACT_CACHE_TTL", 24*time.Hour),
		QuestionsPerChapter: envutil.Int("QUESTIONS_PER_CHAPTER", 8),
		WaveSize:            envutil.Int("GENERATION_WAVE_SIZE", 5),
		SemanticValidation:  envutil.Bool("SEMANTIC_VALIDATION", true),
		Temperature:         envutil.Float("GENERATION_TEMPERATURE", 0.4),
		DedupThreshold:      envutil.Float("DEDUP_THRESHOLD", question.DefaultDedupThreshold),
	}
}

// App is the fully wired object graph. Construction is explicit and happens
// once at boot; no package-level singletons.
type App struct {
	Log       *logger.Logger
	Config    Config
	Registry  *reliability.Registry
	Client    *pipeline.ReliableClient
	Segmenter *segment.Segmenter
	Auditor   *audit.Auditor
	Fallback  *fallback.Generator
	Pipeline  *pipeline.Pipeline
}

func New(log *logger.Logger, cfg Config) (*App, error) {
	registry := reliability.NewDefaultRegistry(log)

	raw, err := openai.NewClient(log)
	if err != nil {
		return nil, err
	}

	var responseStore, factStore cache.Store
	if cfg.RedisAddr != "" {
		rs, rErr := cache.NewRedisStore(log, "responses", cfg.ResponseCacheTTL)
		if rErr != nil {
			return nil, rErr
		}
		fs, fErr := cache.NewRedisStore(log, "facts", cfg.FactCacheTTL)
		if fErr != nil {
			return nil, fErr
		}
		responseStore, factStore = rs, fs
	} else {
		responseStore = cache.New(log, "responses", cfg.ResponseCacheSize, cfg.ResponseCacheTTL)
		factStore = cache.New(log, "facts", cfg.ResponseCacheSize, cfg.FactCacheTTL)
	}

	client := pipeline.NewReliableClient(log, raw, registry, responseStore)

	validator, err := question.NewValidator(log, question.DefaultValidatorConfig())
	if err != nil {
		return nil, err
	}
	admin, err := question.NewAdminFilter(log)
	if err != nil {
		return nil, err
	}
	dedup := question.NewDedupTracker(log, cfg.DedupThreshold)

	textBreaker := registry.Breaker(reliability.DependencyText)
	facts := grounding.NewFactExtractor(log, raw, textBreaker, factStore)
	semantic := grounding.NewSemanticValidator(log, raw, textBreaker, grounding.DefaultSemanticConfig())

	fb, err := fallback.NewGenerator(log)
	if err != nil {
		return nil, err
	}

	pipe, err := pipeline.New(log, pipeline.Deps{
		Client:    client,
		Validator: validator,
		Dedup:     dedup,
		Admin:     admin,
		Facts:     facts,
		Semantic:  semantic,
		Fallback:  fb,
	}, pipeline.Config{
		QuestionsPerChapter: cfg.QuestionsPerChapter,
		WaveSize:            cfg.WaveSize,
		SemanticValidation:  cfg.SemanticValidation,
		Temperature:         cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	auditor, err := audit.NewAuditor(log)
	if err != nil {
		return nil, err
	}

	return &App{
		Log:       log,
		Config:    cfg,
		Registry:  registry,
		Client:    client,
		Segmenter: segment.NewSegmenter(log, segment.DefaultConfig()),
		Auditor:   auditor,
		Fallback:  fb,
		Pipeline:  pipe,
	}, nil
}
