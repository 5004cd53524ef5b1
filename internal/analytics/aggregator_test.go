package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func feed(t *testing.T, agg *Aggregator, event any) {
	t.Helper()
	handler := HandleEvent(agg)
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	if err := handler(context.Background(), []byte("analytics"), data); err != nil {
		t.Fatal(err)
	}
}

func TestAggregator_QueryEvents(t *testing.T) {
	agg := NewAggregator()

	feed(t, agg, QueryEvent{Type: EventQuery, Question: "what is go?", Confidence: 0.9, CacheHit: true, LatencyMs: 100, Timestamp: time.Now()})
	feed(t, agg, QueryEvent{Type: EventQuery, Question: "what is go?", Confidence: 0.7, LatencyMs: 300, Timestamp: time.Now()})
	feed(t, agg, QueryEvent{Type: EventNoResult, Question: "unanswerable", LatencyMs: 50, Timestamp: time.Now()})

	stats := agg.Stats()
	if stats.TotalQueries != 3 {
		t.Errorf("total queries = %d, want 3", stats.TotalQueries)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 2 {
		t.Errorf("cache hits/misses = %d/%d, want 1/2", stats.CacheHits, stats.CacheMisses)
	}
	if stats.NoResultCount != 1 {
		t.Errorf("no-result count = %d, want 1", stats.NoResultCount)
	}
	if stats.AvgLatencyMs != 150 {
		t.Errorf("avg latency = %v, want 150", stats.AvgLatencyMs)
	}
	if len(stats.TopQuestions) == 0 || stats.TopQuestions[0].Question != "what is go?" {
		t.Errorf("top questions = %+v", stats.TopQuestions)
	}
	if len(stats.NoResultQuestions) != 1 || stats.NoResultQuestions[0].Question != "unanswerable" {
		t.Errorf("no-result questions = %+v", stats.NoResultQuestions)
	}
}

func TestAggregator_ErrorEvents(t *testing.T) {
	agg := NewAggregator()

	feed(t, agg, QueryEvent{Type: EventRetrievalError, Question: "q", Timestamp: time.Now()})
	feed(t, agg, QueryEvent{Type: EventGenerationError, Question: "q", Timestamp: time.Now()})

	if got := agg.Stats().ErrorCount; got != 2 {
		t.Errorf("error count = %d, want 2", got)
	}
}

func TestAggregator_DocumentEvents(t *testing.T) {
	agg := NewAggregator()

	feed(t, agg, DocumentEvent{Type: EventDocumentIngest, DocumentID: "d1", Filename: "a.txt", ChunkCount: 3, Timestamp: time.Now()})
	feed(t, agg, DocumentEvent{Type: EventDocumentIngest, DocumentID: "d2", Filename: "b.txt", ChunkCount: 1, Timestamp: time.Now()})

	stats := agg.Stats()
	if stats.TotalDocsIngested != 2 {
		t.Errorf("docs ingested = %d, want 2", stats.TotalDocsIngested)
	}
	if stats.TotalQueries != 0 {
		t.Errorf("document events must not count as queries, got %d", stats.TotalQueries)
	}
}

func TestAggregator_MalformedPayloadIgnored(t *testing.T) {
	agg := NewAggregator()
	handler := HandleEvent(agg)

	if err := handler(context.Background(), nil, []byte("not json")); err != nil {
		t.Fatalf("malformed payloads must not be retried: %v", err)
	}
	if got := agg.Stats().TotalQueries; got != 0 {
		t.Errorf("total queries = %d after garbage input", got)
	}
}

func TestAggregator_EmptyStats(t *testing.T) {
	stats := NewAggregator().Stats()
	if stats.AvgConfidence != 0 || stats.P99LatencyMs != 0 {
		t.Errorf("empty aggregator stats not zeroed: %+v", stats)
	}
}
