// Package strategy implements the retrieval strategies compared by a
// benchmark run. Every strategy answers exact-path queries over the same
// inserted corpus; they differ only in how they find the answer.
package strategy

import "github.com/wattbench/wattbench/internal/workload"

// Lookup resolves a query path to the best matching document. An empty
// answer string with a nil document means "not found". The score is
// strategy-defined and carries no correctness meaning.
type Lookup func(query string) (answer string, doc *workload.Document, score float64, err error)

// Strategy is a retrieval method under measurement. Insert is called once
// per corpus document before any lookup.
type Strategy interface {
	Name() string
	Insert(path string, doc workload.Document)
	Lookup(query string) (string, *workload.Document, float64, error)
}
