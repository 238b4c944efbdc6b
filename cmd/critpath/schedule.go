package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhenderson/criticalpy/internal/claude"
	"github.com/dhenderson/criticalpy/internal/cpm"
	"github.com/dhenderson/criticalpy/internal/export"
	"github.com/dhenderson/criticalpy/internal/graph"
	"github.com/dhenderson/criticalpy/internal/reporter"
	"github.com/dhenderson/criticalpy/internal/store"
	"github.com/dhenderson/criticalpy/internal/ui"
)

func scheduleCmd() *cobra.Command {
	var (
		flagOutput           string
		flagSave             bool
		flagSinkPolicy       string
		flagRejectDuplicates bool
		flagExplain          bool
		flagQuiet            bool
	)

	cmd := &cobra.Command{
		Use:   "schedule <tasks-file>",
		Short: "Compute and print the critical path schedule",
		Long: `Loads tasks from a CSV, JSON or HCL file and computes the schedule.
CSV rows are task_id,name,duration,predecessor_ids with a header row.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			pc, err := projectConfig(flagSinkPolicy, flagRejectDuplicates)
			if err != nil {
				return err
			}

			p, err := buildProject(source, pc)
			if err != nil {
				return err
			}

			if flagOutput != "" {
				if err := writeScheduleFile(flagOutput, p); err != nil {
					return err
				}
			}

			var runID int64
			if flagSave {
				runID, err = saveRun(cmd.Context(), source, p)
				if err != nil {
					return err
				}
			}

			rpt := reporter.New(p, source)
			if flagJSON {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else if flagQuiet {
				fmt.Println(rpt.Summary())
			} else {
				ui.PrintBanner(os.Stdout)
				rpt.PrintSchedule(os.Stdout)
				if flagOutput != "" {
					fmt.Printf("\n📄 Wrote schedule to %s\n", ui.Dim(flagOutput))
				}
				if flagSave {
					fmt.Printf("💾 Saved as run %s\n", ui.Bold(runID))
				}
			}

			if flagExplain {
				return explainSchedule(cmd.Context(), rpt)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Write the schedule CSV to this file")
	cmd.Flags().BoolVar(&flagSave, "save", false, "Record this run in the history database")
	cmd.Flags().StringVar(&flagSinkPolicy, "sink-policy", "", "all-sinks or single-sink (overrides config)")
	cmd.Flags().BoolVar(&flagRejectDuplicates, "reject-duplicates", false, "Fail on repeated task ids instead of keeping the last")
	cmd.Flags().BoolVar(&flagExplain, "explain", false, "Ask Claude for a narrative of what drives the finish")
	cmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "Print a one-line summary instead of the table")

	return cmd
}

func writeScheduleFile(path string, p *cpm.Project) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteScheduleCSV(f, p); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func saveRun(ctx context.Context, source string, p *cpm.Project) (int64, error) {
	s, err := store.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return s.Save(ctx, source, p)
}

func explainSchedule(ctx context.Context, rpt *reporter.Reporter) error {
	data, err := rpt.JSON()
	if err != nil {
		return err
	}
	client, err := newClaudeClient("")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Infer.Timeout.Duration)
	defer cancel()

	fmt.Fprintf(os.Stderr, "🔍 Asking Claude to explain the schedule...\n")
	text, err := client.ExplainSchedule(ctx, string(data))
	if err != nil {
		return fmt.Errorf("explain schedule: %w", err)
	}
	fmt.Printf("\n💡 %s\n%s\n", ui.BoldWhite("Explanation:"), text)
	return nil
}

func newClaudeClient(model string) (*claude.Client, error) {
	if model == "" {
		model = cfg.Infer.Model
	}
	return claude.NewClient(claude.Options{
		Model:      model,
		MaxTokens:  cfg.Infer.MaxTokens,
		MaxRetries: cfg.Infer.MaxRetries,
		Logger:     logger,
	})
}

func validateCmd() *cobra.Command {
	var (
		flagSinkPolicy       string
		flagRejectDuplicates bool
	)

	cmd := &cobra.Command{
		Use:   "validate <tasks-file>",
		Short: "Check a task file without printing the schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := projectConfig(flagSinkPolicy, flagRejectDuplicates)
			if err != nil {
				return err
			}
			records, err := loadRecords(args[0])
			if err != nil {
				return err
			}
			g, err := graph.Build(records, pc.Graph)
			if err == nil {
				_, err = cpm.Analyze(g, pc)
			}
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(struct {
					Valid bool  `json:"valid"`
					Tasks int   `json:"tasks"`
					Roots []int `json:"roots"`
					Sinks []int `json:"sinks"`
					Order []int `json:"order"`
				}{true, g.Len(), g.Roots(), g.Sinks(), g.TopoIDs()})
			}
			fmt.Printf("%s %s: %s tasks, roots %s, sinks %s\n",
				ui.OKIcon(), args[0], ui.Bold(g.Len()),
				ui.Bold(joinInts(g.Roots(), ", ")), ui.Bold(joinInts(g.Sinks(), ", ")))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagSinkPolicy, "sink-policy", "", "all-sinks or single-sink (overrides config)")
	cmd.Flags().BoolVar(&flagRejectDuplicates, "reject-duplicates", false, "Fail on repeated task ids instead of keeping the last")

	return cmd
}

func dotCmd() *cobra.Command {
	var (
		flagHighlight  string
		flagBackground string
		flagOutput     string
	)

	cmd := &cobra.Command{
		Use:   "dot <tasks-file>",
		Short: "Output the schedule as a Graphviz DOT diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildProject(args[0], cfg.ProjectConfig())
			if err != nil {
				return err
			}

			opts := cfg.DOTOptions()
			if flagHighlight != "" {
				opts.HighlightColor = flagHighlight
			}
			if flagBackground != "" {
				opts.BackgroundColor = flagBackground
			}

			if flagOutput == "" {
				return export.WriteDOT(os.Stdout, p, opts)
			}
			f, err := os.Create(flagOutput)
			if err != nil {
				return fmt.Errorf("create %s: %w", flagOutput, err)
			}
			if err := export.WriteDOT(f, p, opts); err != nil {
				f.Close()
				return fmt.Errorf("write %s: %w", flagOutput, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "📄 Wrote diagram to %s\n", flagOutput)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagHighlight, "highlight", "", "Fill colour for critical tasks (overrides config)")
	cmd.Flags().StringVar(&flagBackground, "background", "", "Fill colour for other tasks (overrides config)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Write DOT to this file instead of stdout")

	return cmd
}
