package strategy

import "github.com/wattbench/wattbench/internal/workload"

// Baseline scans every candidate path and picks the one with the longest
// common prefix against the query. Deterministic and exact on exact-match
// workloads, but each lookup is linear in the corpus size, which is the
// point: it is the floor the indexed strategies are compared against.
type Baseline struct {
	maxLen int
	paths  []string
	docs   []workload.Document
}

// NewBaseline creates a scan strategy that compares at most maxLen
// characters per candidate.
func NewBaseline(maxLen int) *Baseline {
	return &Baseline{maxLen: maxLen}
}

func (b *Baseline) Name() string { return "baseline_naive_lcp_scan" }

func (b *Baseline) Insert(path string, doc workload.Document) {
	b.paths = append(b.paths, path)
	b.docs = append(b.docs, doc)
}

func (b *Baseline) Lookup(query string) (string, *workload.Document, float64, error) {
	if len(b.paths) == 0 {
		return "", nil, 0, nil
	}

	bestIdx := 0
	bestLCP := -1
	for i, candidate := range b.paths {
		if l := lcpLen(query, candidate, b.maxLen); l > bestLCP {
			bestLCP = l
			bestIdx = i
		}
	}
	return b.paths[bestIdx], &b.docs[bestIdx], 0, nil
}

// lcpLen counts the common prefix of a and b in runes, capped at maxLen.
func lcpLen(a, b string, maxLen int) int {
	ra := []rune(a)
	rb := []rune(b)

	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	if maxLen < n {
		n = maxLen
	}

	i := 0
	for i < n && ra[i] == rb[i] {
		i++
	}
	return i
}
