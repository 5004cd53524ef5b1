package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"docqa/pkg/kafka"
)

type AggregatedStats struct {
	TotalQueries      int64        `json:"total_queries"`
	TotalDocsIngested int64        `json:"total_docs_ingested"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	NoResultCount     int64        `json:"no_result_count"`
	ErrorCount        int64        `json:"error_count"`
	AvgConfidence     float64      `json:"avg_confidence"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQuestions      []QueryCount `json:"top_questions"`
	NoResultQuestions []QueryCount `json:"no_result_questions"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Question string `json:"question"`
	Count    int64  `json:"count"`
}

// Aggregator folds analytics events into rolling statistics for the
// analytics endpoint. Events arrive via HandleEvent, typically from the
// Kafka consumers.
type Aggregator struct {
	mu                sync.RWMutex
	totalQueries      atomic.Int64
	totalDocsIngested atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	noResults         atomic.Int64
	errors            atomic.Int64
	latencies         []int64
	confidenceSum     float64
	questionCounts    map[string]int64
	noResultQuestions map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 10000),
		questionCounts:    make(map[string]int64),
		noResultQuestions: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns the Kafka message handler that feeds the aggregator.
// Unknown payloads are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err == nil && event.Type != EventDocumentIngest && event.Type != "" {
			agg.recordQueryEvent(event)
			return nil
		}
		docEvent, docErr := kafka.DecodeJSON[DocumentEvent](value)
		if docErr != nil || docEvent.Type != EventDocumentIngest {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.recordDocumentEvent(docEvent)
		return nil
	}
}

func (a *Aggregator) recordQueryEvent(event QueryEvent) {
	a.totalQueries.Add(1)

	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}

	switch event.Type {
	case EventNoResult:
		a.noResults.Add(1)
	case EventRetrievalError, EventGenerationError:
		a.errors.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.confidenceSum += event.Confidence
	a.questionCounts[event.Question]++
	if event.Type == EventNoResult {
		a.noResultQuestions[event.Question]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordDocumentEvent(event DocumentEvent) {
	a.totalDocsIngested.Add(1)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:      a.totalQueries.Load(),
		TotalDocsIngested: a.totalDocsIngested.Load(),
		CacheHits:         a.cacheHits.Load(),
		CacheMisses:       a.cacheMisses.Load(),
		NoResultCount:     a.noResults.Load(),
		ErrorCount:        a.errors.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
		stats.AvgConfidence = a.confidenceSum / float64(len(sorted))
	}
	stats.TopQuestions = topN(a.questionCounts, 10)
	stats.NoResultQuestions = topN(a.noResultQuestions, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for question, count := range counts {
		result = append(result, QueryCount{Question: question, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
