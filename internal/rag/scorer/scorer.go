// Package scorer converts raw cosine distances into bounded similarities and
// an aggregate answer confidence. Scoring is pure: identical inputs always
// produce identical outputs.
package scorer

import (
	"math"
	"sort"

	"docqa/internal/rag"
	"docqa/pkg/config"
)

// Scorer applies the distance filter, the similarity transform, and the
// confidence formula. All constants come from RetrievalConfig; see the
// config package for their meaning.
type Scorer struct {
	cfg config.RetrievalConfig
}

// New creates a Scorer, filling zero config values with the defaults used
// throughout the service. The blend weights are defaulted as a pair: an
// explicit zero for one of them is a legitimate tuning (best-only or
// avg-only) and is kept as configured.
func New(cfg config.RetrievalConfig) *Scorer {
	if cfg.DistanceThreshold <= 0 {
		cfg.DistanceThreshold = 0.7
	}
	if cfg.BestCutoff <= 0 {
		cfg.BestCutoff = 0.6
	}
	if cfg.CountFactorBase <= 0 {
		cfg.CountFactorBase = 0.8
	}
	if cfg.CountFactorStep <= 0 {
		cfg.CountFactorStep = 0.1
	}
	if cfg.BestWeight <= 0 && cfg.AvgWeight <= 0 {
		cfg.BestWeight = 0.7
		cfg.AvgWeight = 0.3
	}
	return &Scorer{cfg: cfg}
}

// Similarity maps a cosine distance in [0, 2] onto [0, 1], monotonically
// decreasing: similarity = max(0, 1 - distance/2).
func Similarity(distance float64) float64 {
	s := 1 - distance/2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Score filters retrieved chunks by raw distance, annotates the survivors
// with similarities, orders them by similarity descending, and computes the
// aggregate confidence.
//
// The filter keeps chunks with distance strictly below the threshold. It
// operates on the raw distance, not the transformed similarity; that
// asymmetry is deliberate and the threshold is a configuration knob.
func (s *Scorer) Score(retrieved []rag.ScoredChunk) rag.RetrievalResult {
	filtered := make([]rag.ScoredChunk, 0, len(retrieved))
	for _, sc := range retrieved {
		if sc.Distance >= s.cfg.DistanceThreshold {
			continue
		}
		sc.Similarity = Similarity(sc.Distance)
		filtered = append(filtered, sc)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Similarity != filtered[j].Similarity {
			return filtered[i].Similarity > filtered[j].Similarity
		}
		return filtered[i].Chunk.ID < filtered[j].Chunk.ID
	})

	return rag.RetrievalResult{
		Chunks:     filtered,
		Confidence: s.confidence(filtered),
		Count:      len(filtered),
	}
}

// confidence blends the best and mean similarity of the filtered set.
//
// countFactor = min(base + step*n, 1.0), so one chunk scales by 0.9 and two
// or more by 1.0 with the default constants. A strong best match (above the
// cutoff) is trusted on its own; otherwise the best and the average are
// blended by the configured weights. The result is rounded to 3 decimals
// and clamped to [0, 1].
func (s *Scorer) confidence(chunks []rag.ScoredChunk) float64 {
	if len(chunks) == 0 {
		return 0.0
	}

	best := 0.0
	sum := 0.0
	for _, sc := range chunks {
		if sc.Similarity > best {
			best = sc.Similarity
		}
		sum += sc.Similarity
	}

	countFactor := s.cfg.CountFactorBase + s.cfg.CountFactorStep*float64(len(chunks))
	if countFactor > 1.0 {
		countFactor = 1.0
	}

	var confidence float64
	if best > s.cfg.BestCutoff {
		confidence = best * countFactor
	} else {
		avg := sum / float64(len(chunks))
		confidence = (s.cfg.BestWeight*best + s.cfg.AvgWeight*avg) * countFactor
	}

	confidence = math.Round(confidence*1000) / 1000
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
