package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dhenderson/criticalpy/internal/config"
	"github.com/dhenderson/criticalpy/internal/cpm"
	"github.com/dhenderson/criticalpy/internal/graph"
	"github.com/dhenderson/criticalpy/internal/loader"
	"github.com/dhenderson/criticalpy/internal/ui"
)

const defaultConfigPath = "critpath.toml"

var (
	flagConfig   string
	flagLogLevel string
	flagJSON     bool

	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if code := execute(ctx, newRootCmd(), os.Stderr); code != 0 {
		os.Exit(code)
	}
}

// execute runs the command tree. Commands return their errors unprinted and
// the failure is reported here on a single line.
func execute(ctx context.Context, rootCmd *cobra.Command, stderr io.Writer) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "%s %s\n", ui.ErrorIcon(), describeError(err))
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "critpath",
		Short: "Compute critical path schedules for dependent tasks",
		Long: `Critpath reads a set of tasks with durations and predecessors, runs the
Critical Path Method forward and backward passes, and reports each task's
early/late start and finish, its slack, and the chain of critical tasks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfig, !cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if flagLogLevel != "" {
				cfg.Log.Level = flagLogLevel
			}
			logger = configureLogger(cfg.Log.Level, cfg.Log.Format)
			slog.SetDefault(logger)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath, "Config file path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(dotCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(inferDepsCmd())
	rootCmd.AddCommand(serveCmd())

	return rootCmd
}

func configureLogger(logLevel, format string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// loadRecords reads the task file named on the command line.
func loadRecords(path string) ([]graph.Record, error) {
	records, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return records, nil
}

// buildProject is shared logic for the commands that need a schedule.
func buildProject(path string, pc cpm.Config) (*cpm.Project, error) {
	records, err := loadRecords(path)
	if err != nil {
		return nil, err
	}

	p, err := cpm.New(records, pc)
	if err != nil {
		return nil, fmt.Errorf("CPM analysis: %w", err)
	}
	logger.Debug("Computed schedule.", "source", path, "tasks", p.Len(), "finish", p.Finish())
	return p, nil
}

// projectConfig merges command-line overrides into the configured policies.
func projectConfig(sinkPolicy string, rejectDuplicates bool) (cpm.Config, error) {
	pc := cfg.ProjectConfig()
	if sinkPolicy != "" {
		sp, ok := cpm.ParseSinkPolicy(sinkPolicy)
		if !ok {
			return pc, fmt.Errorf("unknown --sink-policy %q (use all-sinks or single-sink)", sinkPolicy)
		}
		pc.Sinks = sp
	}
	if rejectDuplicates {
		pc.Graph.Duplicates = graph.RejectDuplicates
	}
	return pc, nil
}

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// describeError expands the typed graph and loader errors into a line a
// user can act on.
func describeError(err error) string {
	var (
		cycle   *graph.CycleError
		unknown *graph.UnknownPredecessorError
		dup     *graph.DuplicateTaskIDError
		bad     *loader.MalformedRecordError
	)
	switch {
	case errors.As(err, &cycle):
		return fmt.Sprintf("dependency cycle: %s", joinInts(cycle.Path, " → "))
	case errors.As(err, &unknown):
		return fmt.Sprintf("task %d depends on unknown task %d", unknown.TaskID, unknown.PredecessorID)
	case errors.As(err, &dup):
		return fmt.Sprintf("task id %d appears more than once", dup.TaskID)
	case errors.As(err, &bad):
		return bad.Error()
	case errors.Is(err, cpm.ErrMultipleSinks):
		return "more than one task has no successors (use --sink-policy all-sinks to allow this)"
	default:
		return err.Error()
	}
}

func joinInts(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, sep)
}
