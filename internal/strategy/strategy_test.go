package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattbench/wattbench/internal/workload"
)

func insertCorpus(t *testing.T, s Strategy) *workload.Corpus {
	t.Helper()

	corpus, err := workload.BuildCorpus(42, 1000, 3, 16)
	require.NoError(t, err)
	for i, path := range corpus.Paths {
		s.Insert(path, corpus.Docs[i])
	}
	return corpus
}

func TestBaselineExactMatch(t *testing.T) {
	b := NewBaseline(128)
	corpus := insertCorpus(t, b)

	for i := 0; i < len(corpus.Paths); i += 97 {
		answer, doc, _, err := b.Lookup(corpus.Paths[i])
		require.NoError(t, err)
		assert.Equal(t, corpus.Paths[i], answer)
		require.NotNil(t, doc)
		assert.Equal(t, corpus.Docs[i], *doc)
	}
}

func TestBaselineEmptyCorpus(t *testing.T) {
	b := NewBaseline(128)

	answer, doc, _, err := b.Lookup("anything")
	require.NoError(t, err)
	assert.Empty(t, answer)
	assert.Nil(t, doc)
}

func TestBaselinePrefersLongestPrefix(t *testing.T) {
	b := NewBaseline(128)
	b.Insert("alpha → beta → doc_1", workload.Document{ID: 1})
	b.Insert("alpha → gamma → doc_2", workload.Document{ID: 2})

	answer, doc, _, err := b.Lookup("alpha → gamma → doc_9")
	require.NoError(t, err)
	assert.Equal(t, "alpha → gamma → doc_2", answer)
	require.NotNil(t, doc)
	assert.Equal(t, 2, doc.ID)
}

func TestLCPLen(t *testing.T) {
	assert.Equal(t, 0, lcpLen("abc", "xyz", 128))
	assert.Equal(t, 3, lcpLen("abc", "abc", 128))
	assert.Equal(t, 2, lcpLen("abc", "abd", 128))
	assert.Equal(t, 1, lcpLen("abc", "abd", 1), "cap applies")
	// Arrow separators are multi-byte; comparison counts runes.
	assert.Equal(t, 2, lcpLen("a→b", "a→c", 128))
}

func TestIndexedExactMatch(t *testing.T) {
	x := NewIndexed()
	corpus := insertCorpus(t, x)

	answer, doc, score, err := x.Lookup(corpus.Paths[0])
	require.NoError(t, err)
	assert.Equal(t, corpus.Paths[0], answer)
	require.NotNil(t, doc)
	assert.Equal(t, corpus.Docs[0], *doc)
	assert.Equal(t, 1.0, score)
}

func TestIndexedMiss(t *testing.T) {
	x := NewIndexed()
	insertCorpus(t, x)

	answer, doc, score, err := x.Lookup("no such path")
	require.NoError(t, err)
	assert.Empty(t, answer)
	assert.Nil(t, doc)
	assert.Equal(t, 0.0, score)
}
