package strategy

import "github.com/wattbench/wattbench/internal/workload"

// Indexed resolves queries through an exact-path hash index. Lookups are
// constant time; a query that is not an exact corpus path misses.
type Indexed struct {
	byPath map[string]workload.Document
}

func NewIndexed() *Indexed {
	return &Indexed{byPath: make(map[string]workload.Document)}
}

func (x *Indexed) Name() string { return "indexed_exact_lookup" }

func (x *Indexed) Insert(path string, doc workload.Document) {
	x.byPath[path] = doc
}

func (x *Indexed) Lookup(query string) (string, *workload.Document, float64, error) {
	doc, ok := x.byPath[query]
	if !ok {
		return "", nil, 0, nil
	}
	return query, &doc, 1, nil
}
