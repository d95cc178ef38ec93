// Package workload generates the deterministic document corpus and query
// stream used for benchmark runs. Every structure is a pure function of the
// run seed and the dataset parameters, so two runs with the same inputs see
// identical workloads.
package workload

import (
	"fmt"
	"math/rand"
	"strings"
)

// Multiplicative hash constants for deriving edge references from a document
// ID.
const (
	refAMultiplier uint64 = 1315423911
	refBMultiplier uint64 = 2654435761
)

// Edges links a document to two other documents in the corpus.
type Edges struct {
	RefA int `json:"ref_a"`
	RefB int `json:"ref_b"`
}

// Document is one corpus entry, addressed by its hierarchical path.
type Document struct {
	ID    int   `json:"doc_id"`
	Edges Edges `json:"edges"`
}

// Corpus holds the generated documents in shuffled insertion order along
// with their paths. Paths[i] addresses Docs[i].
type Corpus struct {
	Paths []string
	Docs  []Document
}

// MakePath builds the hierarchical path for document id: depth-1 level
// segments derived from the ID, joined by arrows, terminated by the document
// name. The level space is kept small so prefixes collide heavily.
func MakePath(id, depth, fanout int) string {
	parts := make([]string, 0, depth)
	x := id
	for d := 0; d < depth-1; d++ {
		parts = append(parts, fmt.Sprintf("lvl%d_%03d", d, x%fanout))
		x /= fanout
	}
	parts = append(parts, fmt.Sprintf("doc_%d", id))
	return strings.Join(parts, " → ")
}

func makeEdges(id, nDocs int) Edges {
	return Edges{
		RefA: int(uint64(id) * refAMultiplier % uint64(nDocs)),
		RefB: int(uint64(id) * refBMultiplier % uint64(nDocs)),
	}
}

// BuildCorpus generates nDocs documents with deterministic paths and edges.
// The seeded generator fixes the insertion order; a document's path and edges
// depend only on its ID and the dataset parameters.
func BuildCorpus(seed int64, nDocs, depth, fanout int) (*Corpus, error) {
	if nDocs <= 0 {
		return nil, fmt.Errorf("corpus size must be positive, got %d", nDocs)
	}
	if depth <= 0 {
		return nil, fmt.Errorf("path depth must be positive, got %d", depth)
	}
	if fanout <= 0 {
		return nil, fmt.Errorf("path fanout must be positive, got %d", fanout)
	}

	rng := rand.New(rand.NewSource(seed))
	order := rng.Perm(nDocs)

	paths := make([]string, nDocs)
	docs := make([]Document, nDocs)
	for i, id := range order {
		paths[i] = MakePath(id, depth, fanout)
		docs[i] = Document{
			ID:    id,
			Edges: makeEdges(id, nDocs),
		}
	}

	return &Corpus{Paths: paths, Docs: docs}, nil
}
