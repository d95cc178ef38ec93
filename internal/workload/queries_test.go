package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCorpus(t *testing.T) *Corpus {
	t.Helper()

	c, err := BuildCorpus(123, 1000, 3, 16)
	require.NoError(t, err)
	return c
}

func TestBuildQueriesDeterministic(t *testing.T) {
	corpus := testCorpus(t)

	a, err := BuildQueries(123, 500, 0.8, corpus)
	require.NoError(t, err)
	b, err := BuildQueries(123, 500, 0.8, corpus)
	require.NoError(t, err)

	assert.Equal(t, a.Tasks, b.Tasks)
	assert.Equal(t, a.HotPaths, b.HotPaths)
}

func TestBuildQueriesTruthMatchesCorpus(t *testing.T) {
	corpus := testCorpus(t)

	byPath := make(map[string]Document, len(corpus.Docs))
	for i, d := range corpus.Docs {
		byPath[corpus.Paths[i]] = d
	}

	qs, err := BuildQueries(123, 500, 0.8, corpus)
	require.NoError(t, err)

	for i, task := range qs.Tasks {
		assert.Equal(t, i, task.QID)
		assert.Equal(t, task.Query, task.ExpectPath)

		doc, ok := byPath[task.Query]
		require.True(t, ok, "query %d targets unknown path", i)
		assert.Equal(t, doc.ID, task.DocID)
		assert.Equal(t, Chain{Doc: doc.ID, RefA: doc.Edges.RefA, RefB: doc.Edges.RefB}, task.Chain)
	}
}

func TestBuildQueriesAllHotAtFullRepeat(t *testing.T) {
	corpus := testCorpus(t)

	qs, err := BuildQueries(123, 500, 1.0, corpus)
	require.NoError(t, err)

	hot := make(map[string]bool, len(qs.HotPaths))
	for _, p := range qs.HotPaths {
		hot[p] = true
	}
	// 1% of 1000 docs.
	assert.Len(t, qs.HotPaths, 10)

	for _, task := range qs.Tasks {
		assert.True(t, hot[task.Query], "query %d not drawn from the hot set", task.QID)
	}
}

func TestBuildQueriesZeroRepeatStillHasHotSet(t *testing.T) {
	corpus := testCorpus(t)

	qs, err := BuildQueries(123, 500, 0.0, corpus)
	require.NoError(t, err)

	// The hot fraction is floored at 0.01%, and the set at one document.
	assert.Len(t, qs.HotPaths, 1)
	assert.Len(t, qs.Tasks, 500)
}

func TestHotSetSize(t *testing.T) {
	assert.Equal(t, 1, hotSetSize(10, 0.8), "floor of one document")
	assert.Equal(t, 10, hotSetSize(1000, 0.8), "capped at 1%")
	assert.Equal(t, 1, hotSetSize(1000, 0.0), "floored at 0.01%")
	assert.Equal(t, 5, hotSetSize(1000, 0.005))
}

func TestBuildQueriesValidation(t *testing.T) {
	corpus := testCorpus(t)

	_, err := BuildQueries(123, 0, 0.8, corpus)
	assert.Error(t, err)

	_, err = BuildQueries(123, 100, -0.1, corpus)
	assert.Error(t, err)

	_, err = BuildQueries(123, 100, 1.1, corpus)
	assert.Error(t, err)
}
