// Package agent orchestrates one question through the full pipeline:
// retrieve, filter and score, build the prompt, generate, update memory,
// and shape the response. Process never returns a Go error; every failure
// becomes an error-shaped QueryResult.
package agent

import (
	"context"
	"log/slog"
	"time"

	"docqa/internal/analytics"
	"docqa/internal/rag"
	"docqa/internal/rag/memory"
	"docqa/internal/rag/prompt"
	"docqa/internal/rag/scorer"
	"docqa/pkg/config"
	"docqa/pkg/logger"
	"docqa/pkg/metrics"
	"docqa/pkg/resilience"
	"docqa/pkg/tracing"
)

// NoInformationAnswer is returned verbatim when no chunk survives the
// distance filter. The generator is not invoked on this path.
const NoInformationAnswer = "Sorry, I could not find relevant information in the documents to answer your question. Try rephrasing the question or upload related documents."

const (
	retrievalErrorAnswer  = "Sorry, an error occurred while searching the documents. Please try again later."
	generationErrorAnswer = "Sorry, an error occurred while generating the answer. Please try again later."
)

// RetrievalCache is the optional caching layer for the retrieval stage. A nil
// cache means every query computes retrieval directly.
type RetrievalCache interface {
	GetOrCompute(ctx context.Context, question string, k int, computeFn func() (*rag.RetrievalResult, error)) (*rag.RetrievalResult, bool, error)
}

// Tracker receives analytics events off the request path.
type Tracker interface {
	Track(event interface{})
}

// Agent wires the ports and policies together. All dependencies except the
// store, generator, and config may be nil; optional pieces degrade to no-ops.
type Agent struct {
	store     rag.ChunkStore
	generator rag.AnswerGenerator
	scorer    *scorer.Scorer
	sessions  *memory.SessionStore
	cache     RetrievalCache
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	tracker   Tracker
	cfg       config.RetrievalConfig
	memCfg    config.MemoryConfig
	logger    *slog.Logger
}

// Options carries the optional dependencies of an Agent.
type Options struct {
	Cache   RetrievalCache
	Metrics *metrics.Metrics
	Tracker Tracker
	Breaker *resilience.CircuitBreaker
}

// New constructs an Agent. Store and generator are required; everything in
// opts may be left zero.
func New(
	store rag.ChunkStore,
	generator rag.AnswerGenerator,
	sessions *memory.SessionStore,
	retrievalCfg config.RetrievalConfig,
	memoryCfg config.MemoryConfig,
	opts Options,
) *Agent {
	breaker := opts.Breaker
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("answer-generator", resilience.CircuitBreakerConfig{})
	}
	return &Agent{
		store:     store,
		generator: generator,
		scorer:    scorer.New(retrievalCfg),
		sessions:  sessions,
		cache:     opts.Cache,
		breaker:   breaker,
		metrics:   opts.Metrics,
		tracker:   opts.Tracker,
		cfg:       retrievalCfg,
		memCfg:    memoryCfg,
		logger:    slog.Default().With("component", "qa-agent"),
	}
}

// Sessions exposes the session store for the memory management endpoints.
func (a *Agent) Sessions() *memory.SessionStore {
	return a.sessions
}

// Process answers one question. The returned result is always well-formed:
// retrieval and generation failures are reported through the Error and
// ErrorKind fields, never as a returned error.
func (a *Agent) Process(ctx context.Context, req *rag.QueryRequest) *rag.QueryResult {
	start := time.Now()
	log := logger.FromContext(ctx).With("session_id", req.SessionID)

	ctx, span := tracing.StartChildSpan(ctx, "agent.process")
	defer span.End()

	k := req.MaxResults
	if k <= 0 {
		k = a.cfg.MaxResults
	}
	if k <= 0 {
		k = 5
	}
	span.SetAttr("k", k)

	retrieval, cacheHit, err := a.retrieve(ctx, req.Question, k)
	if err != nil {
		log.Error("retrieval failed", "error", err)
		return a.fail(ctx, req, rag.ErrorKindRetrieval, err, start, cacheHit)
	}
	span.SetAttr("retrieved", retrieval.Count)
	span.SetAttr("cache_hit", cacheHit)

	if a.metrics != nil {
		a.metrics.RetrievedChunks.Observe(float64(retrieval.Count))
	}

	if retrieval.Count == 0 {
		log.Info("no relevant chunks", "question_len", len(req.Question))
		result := &rag.QueryResult{
			Answer:         NoInformationAnswer,
			Sources:        []rag.Source{},
			Confidence:     0.0,
			RetrievedCount: 0,
			ProcessingTime: time.Since(start).Seconds(),
			SessionID:      req.SessionID,
		}
		a.observe(ctx, req, result, analytics.EventNoResult, cacheHit, start)
		return result
	}

	contextBlock := prompt.BuildContext(retrieval.Chunks)
	window := a.sessions.Get(req.SessionID)
	history := window.Render(a.memCfg.RenderTurns)
	fullPrompt := prompt.Build(contextBlock, history, req.Question)

	answer, err := a.generate(ctx, fullPrompt)
	if err != nil {
		log.Error("generation failed", "error", err)
		return a.fail(ctx, req, rag.ErrorKindGeneration, err, start, cacheHit)
	}

	// Both turns land atomically, and only once the answer exists. A request
	// cancelled anywhere above leaves the window untouched.
	window.AppendExchange(req.Question, answer)

	result := &rag.QueryResult{
		Answer:         answer,
		Sources:        buildSources(retrieval.Chunks, a.cfg.TopSources),
		Confidence:     retrieval.Confidence,
		RetrievedCount: retrieval.Count,
		ProcessingTime: time.Since(start).Seconds(),
		SessionID:      req.SessionID,
	}

	log.Info("query answered",
		"confidence", result.Confidence,
		"retrieved", result.RetrievedCount,
		"cache_hit", cacheHit,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	a.observe(ctx, req, result, analytics.EventQuery, cacheHit, start)
	return result
}

func (a *Agent) retrieve(ctx context.Context, question string, k int) (*rag.RetrievalResult, bool, error) {
	compute := func() (*rag.RetrievalResult, error) {
		ctx, span := tracing.StartChildSpan(ctx, "agent.retrieve")
		defer span.End()

		scored, err := a.store.Search(ctx, question, k)
		if err != nil {
			return nil, err
		}
		result := a.scorer.Score(scored)
		return &result, nil
	}

	if a.cache == nil {
		result, err := compute()
		return result, false, err
	}
	result, hit, err := a.cache.GetOrCompute(ctx, question, k, compute)
	if a.metrics != nil && err == nil {
		if hit {
			a.metrics.CacheHitsTotal.Inc()
		} else {
			a.metrics.CacheMissesTotal.Inc()
		}
	}
	return result, hit, err
}

func (a *Agent) generate(ctx context.Context, fullPrompt string) (string, error) {
	ctx, span := tracing.StartChildSpan(ctx, "agent.generate")
	defer span.End()

	var answer string
	err := a.breaker.Execute(func() error {
		var genErr error
		answer, genErr = a.generator.Complete(ctx, []rag.Message{
			{Role: rag.RoleUser, Content: fullPrompt},
		})
		return genErr
	})
	if a.metrics != nil {
		a.metrics.GeneratorBreakerOpen.Set(float64(a.breaker.GetState()))
	}
	return answer, err
}

func (a *Agent) fail(ctx context.Context, req *rag.QueryRequest, kind string, err error, start time.Time, cacheHit bool) *rag.QueryResult {
	answer := retrievalErrorAnswer
	eventType := analytics.EventRetrievalError
	if kind == rag.ErrorKindGeneration {
		answer = generationErrorAnswer
		eventType = analytics.EventGenerationError
	}
	result := &rag.QueryResult{
		Answer:         answer,
		Sources:        []rag.Source{},
		Confidence:     0.0,
		RetrievedCount: 0,
		ProcessingTime: time.Since(start).Seconds(),
		SessionID:      req.SessionID,
		Error:          err.Error(),
		ErrorKind:      kind,
	}
	a.observe(ctx, req, result, eventType, cacheHit, start)
	return result
}

func (a *Agent) observe(ctx context.Context, req *rag.QueryRequest, result *rag.QueryResult, eventType analytics.EventType, cacheHit bool, start time.Time) {
	if a.metrics != nil {
		a.metrics.QueriesTotal.WithLabelValues(outcome(eventType)).Inc()
		cacheStatus := "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
		a.metrics.QueryLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
		a.metrics.QueryConfidence.Observe(result.Confidence)
	}
	if a.tracker != nil {
		a.tracker.Track(analytics.QueryEvent{
			Type:           eventType,
			Question:       req.Question,
			SessionID:      req.SessionID,
			Confidence:     result.Confidence,
			RetrievedCount: result.RetrievedCount,
			CacheHit:       cacheHit,
			LatencyMs:      time.Since(start).Milliseconds(),
			Timestamp:      time.Now().UTC(),
			RequestID:      logger.RequestIDFromContext(ctx),
		})
	}
}

func outcome(eventType analytics.EventType) string {
	switch eventType {
	case analytics.EventQuery:
		return "answered"
	case analytics.EventNoResult:
		return "no_result"
	case analytics.EventRetrievalError:
		return "retrieval_error"
	case analytics.EventGenerationError:
		return "generation_error"
	default:
		return "unknown"
	}
}

// buildSources shapes the top citations from ranked chunks. The preview is
// the full chunk text; scores are the rounded similarities.
func buildSources(chunks []rag.ScoredChunk, top int) []rag.Source {
	if top <= 0 {
		top = 3
	}
	if len(chunks) < top {
		top = len(chunks)
	}
	sources := make([]rag.Source, 0, top)
	for _, sc := range chunks[:top] {
		sources = append(sources, rag.Source{
			Source:         sc.Chunk.Source,
			ChunkID:        sc.Chunk.ID,
			Score:          sc.Similarity,
			ContentPreview: sc.Chunk.Content,
		})
	}
	return sources
}
