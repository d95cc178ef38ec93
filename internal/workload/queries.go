package workload

import (
	"fmt"
	"math/rand"
)

// Chain is the ground-truth reference chain for a query: the target document
// and its two edge references.
type Chain struct {
	Doc  int `json:"doc"`
	RefA int `json:"ref_a"`
	RefB int `json:"ref_b"`
}

// Task is one query against the corpus together with its expected answer.
type Task struct {
	QID        int    `json:"qid"`
	DocID      int    `json:"doc_id"`
	Query      string `json:"query"`
	ExpectPath string `json:"expect_path"`
	Chain      Chain  `json:"chain"`
}

// QuerySet is the generated query stream plus the hot paths it repeats.
type QuerySet struct {
	Tasks    []Task
	HotPaths []string
}

// BuildQueries generates nQueries tasks over the corpus. A small hot set of
// documents is chosen up front and each query targets a hot document with
// probability repeatPct, which is what gives memoization something to cache.
// The generator is seeded with seed+1 so query selection is independent of
// corpus shuffling.
func BuildQueries(seed int64, nQueries int, repeatPct float64, corpus *Corpus) (*QuerySet, error) {
	if nQueries <= 0 {
		return nil, fmt.Errorf("query count must be positive, got %d", nQueries)
	}
	if repeatPct < 0 || repeatPct > 1 {
		return nil, fmt.Errorf("repeat fraction must be in [0, 1], got %g", repeatPct)
	}

	rng := rand.New(rand.NewSource(seed + 1))
	nDocs := len(corpus.Paths)

	hotK := hotSetSize(nDocs, repeatPct)
	hot := rng.Perm(nDocs)[:hotK]

	hotPaths := make([]string, hotK)
	for i, idx := range hot {
		hotPaths[i] = corpus.Paths[idx]
	}

	tasks := make([]Task, nQueries)
	for qid := 0; qid < nQueries; qid++ {
		var idx int
		if rng.Float64() < repeatPct {
			idx = hot[rng.Intn(hotK)]
		} else {
			idx = rng.Intn(nDocs)
		}

		doc := corpus.Docs[idx]
		tasks[qid] = Task{
			QID:        qid,
			DocID:      doc.ID,
			Query:      corpus.Paths[idx],
			ExpectPath: corpus.Paths[idx],
			Chain: Chain{
				Doc:  doc.ID,
				RefA: doc.Edges.RefA,
				RefB: doc.Edges.RefB,
			},
		}
	}

	return &QuerySet{Tasks: tasks, HotPaths: hotPaths}, nil
}

// hotSetSize clamps the hot fraction to [0.01%, 1%] of the corpus, with a
// floor of one document.
func hotSetSize(nDocs int, repeatPct float64) int {
	frac := repeatPct
	if frac < 0.0001 {
		frac = 0.0001
	}
	if frac > 0.01 {
		frac = 0.01
	}
	k := int(float64(nDocs) * frac)
	if k < 1 {
		k = 1
	}
	return k
}
