package bench

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wattbench/wattbench/internal/config"
	"github.com/wattbench/wattbench/internal/strategy"
	"github.com/wattbench/wattbench/internal/workload"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func smallConfig() config.Config {
	return config.Config{
		Dataset: config.DatasetConfig{
			Seed:       42,
			NDocs:      1000,
			NQueries:   500,
			RepeatPct:  0.8,
			Depth:      3,
			Fanout:     16,
			MaxPathLen: 128,
		},
		Telemetry: config.TelemetryConfig{
			SampleInterval:  100 * time.Millisecond,
			MaxSeriesPoints: 1200,
		},
	}
}

func TestRunnerMeasuresAllMethods(t *testing.T) {
	runner := NewRunner(smallConfig(), discardLogger(), NewTracker(), nil)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, report.RunID)
	assert.Equal(t, 1000, report.Scenario.NDocs)
	assert.Equal(t, 500, report.Truth.NQueries)
	assert.Len(t, report.Truth.Answers, 500)
	assert.Nil(t, report.Receipt, "telemetry disabled by default")

	for _, key := range []string{"baseline_no_memo", "baseline_memo", "indexed_no_memo", "indexed_memo"} {
		method, ok := report.Results.Methods[key]
		require.True(t, ok, "missing method %s", key)
		require.Empty(t, method.Error)
		require.NotNil(t, method.Result)

		assert.Equal(t, 500, method.Result.NQueries)
		assert.Equal(t, 1.0, method.Result.Accuracy.Top1Accuracy, "%s must be exact on its own truth", key)
		assert.Equal(t, 1.0, method.Result.Accuracy.ChainAccuracy, key)
	}

	memo := report.Results.Methods["indexed_memo"].Result
	assert.True(t, memo.Memoization.Enabled)
	assert.Equal(t, memo.Memoization.CacheSize, memo.Memoization.CacheMisses)
	assert.Equal(t, 500, memo.Memoization.CacheHits+memo.Memoization.CacheMisses)
}

func TestRunnerDeterministicTruth(t *testing.T) {
	cfg := smallConfig()

	a, err := NewRunner(cfg, discardLogger(), NewTracker(), nil).Run(context.Background())
	require.NoError(t, err)
	b, err := NewRunner(cfg, discardLogger(), NewTracker(), nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Truth, b.Truth)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRunnerReceiptDegradesWithoutBackend(t *testing.T) {
	cfg := smallConfig()
	cfg.Telemetry.Enable = true
	// Zero interval makes sampler construction fail, standing in for a host
	// with no NVML and no nvidia-smi.
	cfg.Telemetry.SampleInterval = 0

	runner := NewRunner(cfg, discardLogger(), NewTracker(), nil)
	report, err := runner.Run(context.Background())
	require.NoError(t, err, "missing telemetry must not fail the run")

	require.NotNil(t, report.Receipt)
	assert.Equal(t, "unresolved", report.Receipt.Backend)
	assert.NotEmpty(t, report.Receipt.Error)

	// Correctness results are intact either way.
	method := report.Results.Methods["indexed_no_memo"]
	require.NotNil(t, method.Result)
	assert.Equal(t, 1.0, method.Result.Accuracy.Top1Accuracy)
}

func TestRunnerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(smallConfig(), discardLogger(), NewTracker(), nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteArtifacts(t *testing.T) {
	runner := NewRunner(smallConfig(), discardLogger(), NewTracker(), nil)
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, WriteArtifacts(dir, report))

	for _, name := range []string{"scenario.json", "dataset_spec.json", "environment.json", "truth.json", "results.json", "receipt_hashes.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected artifact %s: %v", name, err)
		}
	}
	// No receipt collected, so none written or hashed.
	_, err = os.Stat(filepath.Join(dir, "receipt_energy.json"))
	assert.True(t, os.IsNotExist(err))

	var hashes map[string]string
	data, err := os.ReadFile(filepath.Join(dir, "receipt_hashes.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &hashes))

	assert.Len(t, hashes, 5)
	for name, digest := range hashes {
		assert.Len(t, digest, 64, "sha256 hex for %s", name)
	}

	var scenario Scenario
	data, err = os.ReadFile(filepath.Join(dir, "scenario.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &scenario))
	assert.Equal(t, report.Scenario, scenario)
}

func TestTrackerSnapshot(t *testing.T) {
	tracker := NewTracker()

	snap := tracker.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Empty(t, snap.RunID)

	tracker.Begin("run-1")
	tracker.SetMethod("baseline_no_memo")

	snap = tracker.Snapshot()
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, PhaseMeasuring, snap.Phase)
	assert.Equal(t, "baseline_no_memo", snap.Method)
	assert.NotEmpty(t, snap.StartedAt)

	tracker.SetPhase(PhaseWriting)
	snap = tracker.Snapshot()
	assert.Equal(t, PhaseWriting, snap.Phase)
	assert.Empty(t, snap.Method)
}

type failingStrategy struct{}

func (failingStrategy) Name() string                              { return "always_broken" }
func (failingStrategy) Insert(path string, doc workload.Document) {}
func (failingStrategy) Lookup(query string) (string, *workload.Document, float64, error) {
	return "", nil, 0, errors.New("lookup backend offline")
}

func TestRunnerIsolatesFailingStrategy(t *testing.T) {
	runner := NewRunner(smallConfig(), discardLogger(), NewTracker(), nil)
	runner.newStrategies = func(maxPathLen int) []keyedStrategy {
		return []keyedStrategy{
			{"broken", failingStrategy{}},
			{"indexed", strategy.NewIndexed()},
		}
	}

	report, err := runner.Run(context.Background())
	require.NoError(t, err, "one failing strategy must not abort the run")

	for _, key := range []string{"broken_no_memo", "broken_memo"} {
		method, ok := report.Results.Methods[key]
		require.True(t, ok, "missing method %s", key)
		assert.Equal(t, "always_broken", method.Name)
		assert.Contains(t, method.Error, "lookup backend offline")
		assert.Nil(t, method.Result, "%s must carry no partial result", key)
	}

	for _, key := range []string{"indexed_no_memo", "indexed_memo"} {
		method, ok := report.Results.Methods[key]
		require.True(t, ok, "missing method %s", key)
		require.Empty(t, method.Error)
		require.NotNil(t, method.Result)
		assert.Equal(t, 1.0, method.Result.Accuracy.Top1Accuracy)
		assert.Equal(t, 1.0, method.Result.Accuracy.ChainAccuracy)
	}
}
