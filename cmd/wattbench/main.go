package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wattbench/wattbench/internal/app"
	"github.com/wattbench/wattbench/internal/config"
	"github.com/wattbench/wattbench/internal/gpu"
	"github.com/wattbench/wattbench/internal/version"
)

var (
	buildVersion = "dev"
	buildCommit  = ""
	buildTime    = ""
)

type flags struct {
	outputDir  string
	listenAddr string
	logLevel   string
	serve      bool

	seed       int64
	nDocs      int
	nQueries   int
	repeatPct  float64
	depth      int
	fanout     int
	maxPathLen int

	telemetry       bool
	deviceIndex     int
	sampleInterval  time.Duration
	maxSeriesPoints int
}

func main() {
	version.Set(version.Info{
		Version:   buildVersion,
		Commit:    buildCommit,
		BuildTime: buildTime,
	})

	var f flags

	root := &cobra.Command{
		Use:   "wattbench",
		Short: "Reproducible GPU benchmark runner with power telemetry receipts",
		Long: `wattbench runs a seeded retrieval benchmark (procedural corpus, exact and
prefix-scan strategies, optional memoization) while sampling GPU power draw,
then exports signed-by-hash artifacts and an energy receipt.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), logger, cfg)
		},
	}

	root.Flags().StringVar(&f.outputDir, "out-dir", "out", "directory for run artifacts")
	root.Flags().StringVar(&f.listenAddr, "listen", ":8080", "status server listen address")
	root.Flags().StringVar(&f.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&f.serve, "serve", false, "expose status endpoints over HTTP during the run")

	root.Flags().Int64Var(&f.seed, "seed", 123, "master seed for corpus and query generation")
	root.Flags().IntVar(&f.nDocs, "n-docs", 200_000, "number of documents in the corpus")
	root.Flags().IntVar(&f.nQueries, "n-queries", 20_000, "number of queries per method")
	root.Flags().Float64Var(&f.repeatPct, "repeat-pct", 0.8, "fraction of queries drawn from the hot set")
	root.Flags().IntVar(&f.depth, "depth", 5, "hierarchy depth of generated paths")
	root.Flags().IntVar(&f.fanout, "fanout", 256, "branching factor per hierarchy level")
	root.Flags().IntVar(&f.maxPathLen, "max-path-len", 128, "prefix comparison cap for the baseline strategy")

	root.Flags().BoolVar(&f.telemetry, "telemetry", false, "sample GPU power during a representative workload")
	root.Flags().IntVar(&f.deviceIndex, "device", 0, "GPU device index to sample")
	root.Flags().DurationVar(&f.sampleInterval, "interval", 100*time.Millisecond, "telemetry sampling interval")
	root.Flags().IntVar(&f.maxSeriesPoints, "max-series-points", 1200, "timeseries point cap in the energy receipt")

	root.AddCommand(newDevicesCmd(), newVersionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})
		slog.New(handler).Error("run failed", "err", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment first, then lets explicitly set flags win.
func loadConfig(cmd *cobra.Command, f flags) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load configuration: %w", err)
	}

	set := cmd.Flags().Changed
	if set("out-dir") {
		cfg.OutputDir = f.outputDir
	}
	if set("listen") {
		cfg.ListenAddr = f.listenAddr
	}
	if set("serve") {
		cfg.EnableServer = f.serve
	}
	if set("log-level") {
		level, err := config.ParseLogLevel(f.logLevel)
		if err != nil {
			return config.Config{}, nil, err
		}
		cfg.LogLevel = level
	}
	if set("seed") {
		cfg.Dataset.Seed = f.seed
	}
	if set("n-docs") {
		cfg.Dataset.NDocs = f.nDocs
	}
	if set("n-queries") {
		cfg.Dataset.NQueries = f.nQueries
	}
	if set("repeat-pct") {
		cfg.Dataset.RepeatPct = f.repeatPct
	}
	if set("depth") {
		cfg.Dataset.Depth = f.depth
	}
	if set("fanout") {
		cfg.Dataset.Fanout = f.fanout
	}
	if set("max-path-len") {
		cfg.Dataset.MaxPathLen = f.maxPathLen
	}
	if set("telemetry") {
		cfg.Telemetry.Enable = f.telemetry
	}
	if set("device") {
		cfg.Telemetry.DeviceIndex = f.deviceIndex
	}
	if set("interval") {
		cfg.Telemetry.SampleInterval = f.sampleInterval
	}
	if set("max-series-points") {
		cfg.Telemetry.MaxSeriesPoints = f.maxSeriesPoints
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})
	return cfg, slog.New(handler), nil
}

func newDevicesCmd() *cobra.Command {
	var (
		sysfsRoot  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List GPUs visible through sysfs",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

			infos, err := gpu.Discover(sysfsRoot, logger.With("component", "gpu_discovery"))
			if err != nil {
				return fmt.Errorf("gpu discovery: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			if len(infos) == 0 {
				fmt.Println("No GPUs detected")
				return nil
			}
			fmt.Println("Discovered GPUs:")
			for _, info := range infos {
				marker := ""
				if info.NVIDIA {
					marker = " [nvidia]"
				}
				fmt.Printf("- %s (PCI: %s, PCIID: %s, Render: %s, Name: %s)%s\n",
					info.ID, info.PCI, info.PCIID, info.RenderNode, info.Name, marker)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sysfsRoot, "sysfs", "/sys", "path to sysfs root")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit discovery result as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current()
			fmt.Printf("wattbench %s", info.Version)
			if info.Commit != "" {
				fmt.Printf(" (%s)", info.Commit)
			}
			if info.BuildTime != "" {
				fmt.Printf(" built %s", info.BuildTime)
			}
			fmt.Println()
		},
	}
}
