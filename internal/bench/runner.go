package bench

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/wattbench/wattbench/internal/config"
	"github.com/wattbench/wattbench/internal/measure"
	"github.com/wattbench/wattbench/internal/strategy"
	"github.com/wattbench/wattbench/internal/telemetry"
	"github.com/wattbench/wattbench/internal/version"
	"github.com/wattbench/wattbench/internal/workload"
)

// receiptWorkloadTasks caps the representative workload measured under the
// telemetry sampler so receipts stay short.
const receiptWorkloadTasks = 5000

// Scenario records the parameters a run was generated from.
type Scenario struct {
	Seed       int64    `json:"seed"`
	NDocs      int      `json:"n_docs"`
	NQueries   int      `json:"n_queries"`
	RepeatPct  float64  `json:"repeat_pct"`
	Depth      int      `json:"depth"`
	Fanout     int      `json:"fanout"`
	MaxPathLen int      `json:"max_path_len"`
	Notes      []string `json:"notes"`
}

// DatasetSpec describes the generator so a reader can reproduce the corpus
// without this codebase.
type DatasetSpec struct {
	Generator           string `json:"generator"`
	PathFormat          string `json:"path_format"`
	Edges               string `json:"edges"`
	AdversarialProperty string `json:"adversarial_property"`
}

// Environment snapshots the host the run executed on.
type Environment struct {
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	NumCPU    int    `json:"num_cpu"`
	Hostname  string `json:"hostname,omitempty"`
	Version   string `json:"wattbench_version"`
}

// TruthAnswer is the expected result for one query.
type TruthAnswer struct {
	QID        int            `json:"qid"`
	ExpectPath string         `json:"expect_path"`
	Chain      workload.Chain `json:"chain"`
}

// Truth is the full answer key for a run, exported so results can be audited
// independently.
type Truth struct {
	NQueries int           `json:"n_queries"`
	Answers  []TruthAnswer `json:"answers"`
}

// BuildStats times the setup work that happens before measurement.
type BuildStats struct {
	DatasetBuildS float64 `json:"dataset_build_s"`
	InsertS       float64 `json:"insert_s"`
}

// MethodResult is one strategy's outcome: either a measurement or the error
// that aborted it. Failures stay isolated to their own entry.
type MethodResult struct {
	Name   string          `json:"name"`
	Error  string          `json:"error,omitempty"`
	Result *measure.Result `json:"result,omitempty"`
}

// Results aggregates every measured method of a run.
type Results struct {
	Build   BuildStats              `json:"build"`
	Methods map[string]MethodResult `json:"methods"`
}

// Report is the complete output of one benchmark run.
type Report struct {
	RunID       string             `json:"run_id"`
	Scenario    Scenario           `json:"scenario"`
	DatasetSpec DatasetSpec        `json:"dataset_spec"`
	Environment Environment        `json:"environment"`
	Truth       Truth              `json:"-"`
	Results     Results            `json:"results"`
	Receipt     *telemetry.Receipt `json:"receipt,omitempty"`
}

// keyedStrategy pairs a strategy with the method key prefix its results are
// recorded under.
type keyedStrategy struct {
	key string
	s   strategy.Strategy
}

// Runner executes benchmark runs.
type Runner struct {
	cfg     config.Config
	logger  *slog.Logger
	tracker *Tracker
	sampler *telemetry.Sampler

	// newSampler and newStrategies are replaced in tests to avoid touching
	// real backends and to inject misbehaving strategies.
	newSampler    func() (*telemetry.Sampler, error)
	newStrategies func(maxPathLen int) []keyedStrategy
}

// NewRunner builds a runner. A nil sampler means receipt collection will
// construct its own when telemetry is enabled.
func NewRunner(cfg config.Config, logger *slog.Logger, tracker *Tracker, sampler *telemetry.Sampler) *Runner {
	r := &Runner{
		cfg:     cfg,
		logger:  logger.With("component", "bench"),
		tracker: tracker,
		sampler: sampler,
	}
	r.newSampler = func() (*telemetry.Sampler, error) {
		return telemetry.NewSampler(cfg.Telemetry.DeviceIndex, cfg.Telemetry.SampleInterval, logger)
	}
	r.newStrategies = func(maxPathLen int) []keyedStrategy {
		return []keyedStrategy{
			{"baseline", strategy.NewBaseline(maxPathLen)},
			{"indexed", strategy.NewIndexed()},
		}
	}
	return r
}

// Run executes one full benchmark: build the corpus and queries, measure
// every strategy with and without memoization, and optionally collect a
// telemetry receipt around a representative workload. The context bounds the
// run as a whole; measurement itself is not interruptible mid-strategy.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	r.tracker.Begin(runID)
	defer r.tracker.SetPhase(PhaseDone)

	ds := r.cfg.Dataset
	report := &Report{
		RunID: runID,
		Scenario: Scenario{
			Seed:       ds.Seed,
			NDocs:      ds.NDocs,
			NQueries:   ds.NQueries,
			RepeatPct:  ds.RepeatPct,
			Depth:      ds.Depth,
			Fanout:     ds.Fanout,
			MaxPathLen: ds.MaxPathLen,
			Notes: []string{
				"Dataset is procedural (seed → paths + deterministic cross references). No downloads required.",
				"This is structured retrieval (exactness + hierarchy + memoization), not an LLM benchmark.",
			},
		},
		DatasetSpec: DatasetSpec{
			Generator:           "procedural_babel_v0",
			PathFormat:          "lvl{d}_{bucket:03d} → ... → doc_{i}",
			Edges:               "2 deterministic cross refs per doc: ref_a, ref_b",
			AdversarialProperty: "high prefix collisions to stress approximate retrieval",
		},
		Environment: captureEnvironment(),
	}

	r.logger.Info("building dataset", "run_id", runID, "n_docs", ds.NDocs, "depth", ds.Depth, "fanout", ds.Fanout)
	buildStart := time.Now()
	corpus, err := workload.BuildCorpus(ds.Seed, ds.NDocs, ds.Depth, ds.Fanout)
	if err != nil {
		return nil, fmt.Errorf("build corpus: %w", err)
	}
	queries, err := workload.BuildQueries(ds.Seed, ds.NQueries, ds.RepeatPct, corpus)
	if err != nil {
		return nil, fmt.Errorf("build queries: %w", err)
	}
	report.Results.Build.DatasetBuildS = time.Since(buildStart).Seconds()
	report.Truth = buildTruth(queries.Tasks)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.tracker.SetPhase(PhaseInserting)
	strategies := r.newStrategies(ds.MaxPathLen)

	insertStart := time.Now()
	for _, entry := range strategies {
		for i, path := range corpus.Paths {
			entry.s.Insert(path, corpus.Docs[i])
		}
	}
	report.Results.Build.InsertS = time.Since(insertStart).Seconds()

	report.Results.Methods = make(map[string]MethodResult)
	for _, memoize := range []bool{false, true} {
		for _, entry := range strategies {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			key := entry.key + "_no_memo"
			if memoize {
				key = entry.key + "_memo"
			}
			r.tracker.SetMethod(key)
			r.logger.Info("measuring", "method", key, "n_queries", len(queries.Tasks))

			result, err := measure.Run(entry.s.Name(), queries.Tasks, entry.s.Lookup, memoize)
			if err != nil {
				// One broken strategy must not abort its siblings.
				r.logger.Error("measurement failed", "method", key, "err", err)
				report.Results.Methods[key] = MethodResult{Name: entry.s.Name(), Error: err.Error()}
				continue
			}
			report.Results.Methods[key] = MethodResult{Name: entry.s.Name(), Result: &result}
		}
	}

	if r.cfg.Telemetry.Enable {
		r.tracker.SetPhase(PhaseReceipt)
		receipt := r.collectReceipt(queries.Tasks, receiptStrategy(strategies))
		report.Receipt = &receipt
	}

	return report, nil
}

// receiptStrategy picks the strategy measured under the telemetry sampler.
// The indexed lookup is preferred as the representative workload.
func receiptStrategy(strategies []keyedStrategy) strategy.Strategy {
	for _, entry := range strategies {
		if entry.key == "indexed" {
			return entry.s
		}
	}
	return strategies[len(strategies)-1].s
}

// collectReceipt samples telemetry around a representative slice of the
// given workload. Telemetry trouble degrades the receipt, never the run.
func (r *Runner) collectReceipt(tasks []workload.Task, workloadStrategy strategy.Strategy) telemetry.Receipt {
	sampler := r.sampler
	if sampler == nil {
		var err error
		sampler, err = r.newSampler()
		if err != nil {
			r.logger.Warn("telemetry sampler unavailable", "err", err)
			return telemetry.Receipt{Backend: telemetry.BackendUnresolved, Error: err.Error()}
		}
	}
	if err := sampler.Start(); err != nil {
		r.logger.Warn("telemetry sampler failed to start", "err", err)
		return telemetry.Receipt{Backend: telemetry.BackendUnresolved, Error: err.Error()}
	}

	slice := tasks
	if len(slice) > receiptWorkloadTasks {
		slice = slice[:receiptWorkloadTasks]
	}

	workStart := time.Now()
	_, err := measure.Run(workloadStrategy.Name(), slice, workloadStrategy.Lookup, false)
	duration := time.Since(workStart).Seconds()
	sampler.Stop()

	receipt := telemetry.BuildReceipt(sampler, duration, r.cfg.Telemetry.MaxSeriesPoints)
	if err != nil {
		receipt.Error = err.Error()
	}
	return receipt
}

func buildTruth(tasks []workload.Task) Truth {
	answers := make([]TruthAnswer, len(tasks))
	for i, task := range tasks {
		answers[i] = TruthAnswer{
			QID:        task.QID,
			ExpectPath: task.ExpectPath,
			Chain:      task.Chain,
		}
	}
	return Truth{NQueries: len(tasks), Answers: answers}
}

func captureEnvironment() Environment {
	env := Environment{
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		NumCPU:    runtime.NumCPU(),
		Version:   version.Current().Version,
	}
	if hostname, err := os.Hostname(); err == nil {
		env.Hostname = hostname
	}
	return env
}
