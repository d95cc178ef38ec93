// Package measure runs a query stream against one retrieval strategy and
// scores it: latency distribution, exact-match and chain accuracy, and memo
// cache behavior. Strategies are measured strictly one after another so
// wall-clock timings are not confounded by contention.
package measure

import (
	"fmt"
	"time"

	"github.com/wattbench/wattbench/internal/strategy"
	"github.com/wattbench/wattbench/internal/workload"
)

// Accuracy counts exact-answer and reference-chain matches over a run.
type Accuracy struct {
	Top1Correct   int     `json:"top1_correct"`
	Top1Accuracy  float64 `json:"top1_accuracy"`
	ChainCorrect  int     `json:"chain_correct"`
	ChainAccuracy float64 `json:"chain_accuracy"`
}

// Memoization reports cache behavior for a memoized run. For an unmemoized
// run Enabled is false and the counters stay zero.
type Memoization struct {
	Enabled      bool    `json:"enabled"`
	CacheHits    int     `json:"cache_hits"`
	CacheMisses  int     `json:"cache_misses"`
	CacheSize    int     `json:"cache_size"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// Result is the full score card for one strategy over one query stream.
type Result struct {
	Name        string       `json:"name"`
	NQueries    int          `json:"n_queries"`
	DurationS   float64      `json:"duration_s"`
	QPS         float64      `json:"qps"`
	LatencyMS   LatencyStats `json:"latency_ms"`
	Accuracy    Accuracy     `json:"accuracy"`
	Memoization Memoization  `json:"memoization"`
}

type cached struct {
	answer string
	doc    *workload.Document
	score  float64
}

// Run measures lookup over the task stream. With memoize set, repeated query
// strings reuse the first result through a per-call cache; a cache hit still
// records the latency of the cache check itself. A lookup error aborts this
// strategy's measurement and is returned wrapped; the caller decides how to
// isolate it from sibling strategies.
func Run(name string, tasks []workload.Task, lookup strategy.Lookup, memoize bool) (Result, error) {
	latMS := make([]float64, 0, len(tasks))
	top1Correct := 0
	chainCorrect := 0

	var cache map[string]cached
	if memoize {
		cache = make(map[string]cached)
	}
	cacheHits := 0
	cacheMisses := 0

	runStart := time.Now()
	for _, task := range tasks {
		start := time.Now()

		var res cached
		if memoize {
			if hit, ok := cache[task.Query]; ok {
				res = hit
				cacheHits++
			} else {
				answer, doc, score, err := lookup(task.Query)
				if err != nil {
					return Result{}, fmt.Errorf("measure %s: query %d: %w", name, task.QID, err)
				}
				res = cached{answer: answer, doc: doc, score: score}
				cache[task.Query] = res
				cacheMisses++
			}
		} else {
			answer, doc, score, err := lookup(task.Query)
			if err != nil {
				return Result{}, fmt.Errorf("measure %s: query %d: %w", name, task.QID, err)
			}
			res = cached{answer: answer, doc: doc, score: score}
		}

		latMS = append(latMS, float64(time.Since(start))/float64(time.Millisecond))

		if res.answer == task.ExpectPath {
			top1Correct++
		}
		if res.doc != nil &&
			res.doc.Edges.RefA == task.Chain.RefA &&
			res.doc.Edges.RefB == task.Chain.RefB {
			chainCorrect++
		}
	}
	durationS := time.Since(runStart).Seconds()

	n := len(tasks)
	result := Result{
		Name:      name,
		NQueries:  n,
		DurationS: durationS,
		LatencyMS: latencyStats(latMS),
		Memoization: Memoization{
			Enabled:     memoize,
			CacheHits:   cacheHits,
			CacheMisses: cacheMisses,
			CacheSize:   len(cache),
		},
	}
	if durationS > 0 {
		result.QPS = float64(n) / durationS
	}
	if n > 0 {
		result.Accuracy = Accuracy{
			Top1Correct:   top1Correct,
			Top1Accuracy:  float64(top1Correct) / float64(n),
			ChainCorrect:  chainCorrect,
			ChainAccuracy: float64(chainCorrect) / float64(n),
		}
	}
	if memoize {
		if total := cacheHits + cacheMisses; total > 0 {
			result.Memoization.CacheHitRate = float64(cacheHits) / float64(total)
		}
	}
	return result, nil
}
