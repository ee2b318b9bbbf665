package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlearn/coursegen-backend/internal/cache"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
	"github.com/lumenlearn/coursegen-backend/internal/platform/openai"
	"github.com/lumenlearn/coursegen-backend/internal/reliability"
)

// CallRecord is the per-call structured log record. One record per generation
// call is enough to reconstruct cost and reliability metrics offline.
type CallRecord struct {
	RequestID    string `json:"request_id"`
	Function     string `json:"function"`
	ModelID      string `json:"model_id,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	LatencyMS    int64  `json:"latency_ms"`
	Success      bool   `json:"success"`
	Retries      int    `json:"retries"`
	CacheHit     bool   `json:"cache_hit"`
	FallbackUsed bool   `json:"fallback_used"`
}

// ReliableClient composes the reliability layers around the raw generation
// client, outermost first: breaker(retry(cache(generate))). Both generative
// capabilities go through the same wrapping; they differ only in which
// breaker they share.
type ReliableClient struct {
	log      *logger.Logger
	inner    openai.Client
	registry *reliability.Registry
	store    cache.Store
	policy   reliability.RetryPolicy
	cacheTTL time.Duration
}

func NewReliableClient(log *logger.Logger, inner openai.Client, registry *reliability.Registry, store cache.Store) *ReliableClient {
	return &ReliableClient{
		log:      log.With("service", "ReliableClient"),
		inner:    inner,
		registry: registry,
		store:    store,
		policy:   reliability.CriticalPolicy(),
		cacheTTL: time.Hour,
	}
}

func (c *ReliableClient) emit(rec CallRecord, started time.Time) {
	rec.LatencyMS = time.Since(started).Milliseconds()
	c.log.Info("generation call",
		"request_id", rec.RequestID,
		"function", rec.Function,
		"model_id", rec.ModelID,
		"input_tokens", rec.InputTokens,
		"output_tokens", rec.OutputTokens,
		"latency_ms", rec.LatencyMS,
		"success", rec.Success,
		"retries", rec.Retries,
		"cache_hit", rec.CacheHit,
		"fallback_used", rec.FallbackUsed,
	)
}

// Generate memoizes identical requests, retries transient failures and trips
// the shared text breaker on persistent ones.
func (c *ReliableClient) Generate(ctx context.Context, req openai.GenerateRequest) (openai.Result, error) {
	started := time.Now()
	rec := CallRecord{
		RequestID: uuid.NewString(),
		Function:  "generate",
		ModelID:   req.ModelID,
	}
	defer func() { c.emit(rec, started) }()

	key := cache.Key(req)
	if c.store != nil {
		if raw, ok := c.store.Get(ctx, key); ok {
			var cached openai.Result
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				rec.CacheHit = true
				rec.Success = true
				return cached, nil
			}
			c.store.Delete(ctx, key)
		}
	}

	var result openai.Result
	breaker := c.registry.Breaker(reliability.DependencyText)
	err := breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		result, rec.Retries, callErr = reliability.Retry(ctx, c.log, "generate", c.policy,
			func(ctx context.Context) (openai.Result, error) {
				return c.inner.Generate(ctx, req)
			})
		return callErr
	})
	if err != nil {
		return openai.Result{}, err
	}

	rec.Success = true
	rec.InputTokens = result.Usage.InputTokens
	rec.OutputTokens = result.Usage.OutputTokens
	if c.store != nil {
		if raw, mErr := json.Marshal(result); mErr == nil {
			c.store.SetTTL(ctx, key, string(raw), c.cacheTTL)
		}
	}
	return result, nil
}

// GenerateWithFallback substitutes the supplied fallback when the wrapped
// call fails for any reason, flagging the substitution in the call record.
func (c *ReliableClient) GenerateWithFallback(ctx context.Context, req openai.GenerateRequest, fb func(context.Context) (openai.Result, error)) (openai.Result, error) {
	result, err := c.Generate(ctx, req)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return openai.Result{}, ctx.Err()
	}

	started := time.Now()
	rec := CallRecord{
		RequestID:    uuid.NewString(),
		Function:     "generate_fallback",
		ModelID:      req.ModelID,
		FallbackUsed: true,
	}
	result, fbErr := fb(ctx)
	rec.Success = fbErr == nil
	c.emit(rec, started)
	return result, fbErr
}

// ExtractText wraps the OCR capability with the stricter vision breaker.
// Extractions are memoized by image URL.
func (c *ReliableClient) ExtractText(ctx context.Context, imageURL string) (string, error) {
	started := time.Now()
	rec := CallRecord{
		RequestID: uuid.NewString(),
		Function:  "extract_text",
	}
	defer func() { c.emit(rec, started) }()

	key := cache.Key(map[string]string{"op": "extract_text", "image": imageURL})
	if c.store != nil {
		if raw, ok := c.store.Get(ctx, key); ok {
			rec.CacheHit = true
			rec.Success = true
			return raw, nil
		}
	}

	var text string
	breaker := c.registry.Breaker(reliability.DependencyVision)
	err := breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		text, rec.Retries, callErr = reliability.Retry(ctx, c.log, "extract_text", c.policy,
			func(ctx context.Context) (string, error) {
				return c.inner.ExtractText(ctx, imageURL)
			})
		return callErr
	})
	if err != nil {
		return "", err
	}

	rec.Success = true
	if c.store != nil && text != "" {
		c.store.SetTTL(ctx, key, text, c.cacheTTL)
	}
	return text, nil
}
