package measure

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattbench/wattbench/internal/strategy"
	"github.com/wattbench/wattbench/internal/workload"
)

func buildTasks(t *testing.T, nDocs, nQueries int) ([]workload.Task, strategy.Lookup) {
	t.Helper()

	corpus, err := workload.BuildCorpus(42, nDocs, 3, 16)
	require.NoError(t, err)
	qs, err := workload.BuildQueries(42, nQueries, 0.8, corpus)
	require.NoError(t, err)

	idx := strategy.NewIndexed()
	for i, path := range corpus.Paths {
		idx.Insert(path, corpus.Docs[i])
	}
	return qs.Tasks, idx.Lookup
}

func TestRunScoresExactStrategy(t *testing.T) {
	tasks, lookup := buildTasks(t, 1000, 500)

	res, err := Run("indexed_exact_lookup", tasks, lookup, false)
	require.NoError(t, err)

	assert.Equal(t, "indexed_exact_lookup", res.Name)
	assert.Equal(t, 500, res.NQueries)
	assert.Equal(t, 1.0, res.Accuracy.Top1Accuracy)
	assert.Equal(t, 1.0, res.Accuracy.ChainAccuracy)
	assert.False(t, res.Memoization.Enabled)
	assert.Zero(t, res.Memoization.CacheHits)
	assert.GreaterOrEqual(t, res.LatencyMS.Max, res.LatencyMS.P99)
	assert.GreaterOrEqual(t, res.LatencyMS.P99, res.LatencyMS.P50)
}

func TestRunScoresBrokenStrategy(t *testing.T) {
	tasks, _ := buildTasks(t, 1000, 200)

	broken := func(string) (string, *workload.Document, float64, error) {
		return "", nil, 0, nil
	}

	res, err := Run("broken", tasks, broken, false)
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Accuracy.Top1Accuracy)
	assert.Equal(t, 0.0, res.Accuracy.ChainAccuracy)
	assert.Zero(t, res.Accuracy.Top1Correct)
	assert.Zero(t, res.Accuracy.ChainCorrect)
}

func TestRunMemoCountsDistinctQueries(t *testing.T) {
	const k = 7
	const n = 100

	tasks := make([]workload.Task, n)
	for i := range tasks {
		q := fmt.Sprintf("query_%d", i%k)
		tasks[i] = workload.Task{QID: i, Query: q, ExpectPath: q}
	}
	rand.New(rand.NewSource(1)).Shuffle(len(tasks), func(a, b int) {
		tasks[a], tasks[b] = tasks[b], tasks[a]
	})

	echo := func(q string) (string, *workload.Document, float64, error) {
		return q, nil, 0, nil
	}

	res, err := Run("echo", tasks, echo, true)
	require.NoError(t, err)

	assert.True(t, res.Memoization.Enabled)
	assert.Equal(t, k, res.Memoization.CacheMisses)
	assert.Equal(t, n-k, res.Memoization.CacheHits)
	assert.Equal(t, k, res.Memoization.CacheSize)
	assert.InDelta(t, float64(n-k)/float64(n), res.Memoization.CacheHitRate, 1e-9)
}

func TestRunMemoDoesNotReinvokeLookup(t *testing.T) {
	tasks := make([]workload.Task, 10)
	for i := range tasks {
		tasks[i] = workload.Task{QID: i, Query: "same", ExpectPath: "same"}
	}

	calls := 0
	counting := func(q string) (string, *workload.Document, float64, error) {
		calls++
		return q, nil, 0, nil
	}

	res, err := Run("counting", tasks, counting, true)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1.0, res.Accuracy.Top1Accuracy, "cache hits reuse the first answer")
	// Every task records a latency, hit or miss.
	assert.Equal(t, 10, res.NQueries)
}

func TestRunPropagatesLookupError(t *testing.T) {
	tasks, _ := buildTasks(t, 100, 10)

	boom := errors.New("backend exploded")
	failing := func(string) (string, *workload.Document, float64, error) {
		return "", nil, 0, boom
	}

	_, err := Run("failing", tasks, failing, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
}

func TestPercentileLinearInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	assert.Equal(t, 25.0, percentile(sorted, 50))
	assert.InDelta(t, 38.5, percentile(sorted, 95), 1e-9)
	assert.Equal(t, 40.0, percentile(sorted, 100))
	assert.Equal(t, 10.0, percentile(sorted, 0))
	assert.Equal(t, 5.0, percentile([]float64{5}, 99))
	assert.Equal(t, 0.0, percentile(nil, 50))
}

func TestLatencyStatsEmpty(t *testing.T) {
	assert.Equal(t, LatencyStats{}, latencyStats(nil))
}
