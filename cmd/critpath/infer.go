package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhenderson/criticalpy/internal/claude"
	"github.com/dhenderson/criticalpy/internal/export"
	"github.com/dhenderson/criticalpy/internal/ui"
)

func inferDepsCmd() *cobra.Command {
	var (
		flagApply    bool
		flagModel    string
		flagOutput   string
		flagFromFile string
	)

	cmd := &cobra.Command{
		Use:   "infer-deps <tasks-file>",
		Short: "Use Claude to infer missing predecessors from task names",
		Long: `Sends task ids and names to Claude and infers predecessor edges.
By default runs in dry-run mode; use --apply to write the merged task CSV.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := loadRecords(args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no tasks found in %s", args[0])
			}

			var result *claude.InferResult
			if flagFromFile != "" {
				data, err := os.ReadFile(flagFromFile)
				if err != nil {
					return fmt.Errorf("read from-file: %w", err)
				}
				result, err = claude.ParseInferResult(data)
				if err != nil {
					return fmt.Errorf("parse from-file: %w", err)
				}
				fmt.Fprintf(os.Stderr, "📂 Loaded %s edges from %s\n", ui.Bold(len(result.Edges)), ui.Dim(flagFromFile))
			} else {
				fmt.Fprintf(os.Stderr, "🔍 Sending %s tasks to Claude for dependency inference...\n", ui.Bold(len(records)))

				client, err := newClaudeClient(flagModel)
				if err != nil {
					return err
				}

				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Infer.Timeout.Duration)
				defer cancel()
				result, err = client.InferPredecessors(ctx, claude.Summaries(records))
				if err != nil {
					return fmt.Errorf("infer predecessors: %w", err)
				}
			}

			set, err := claude.ValidateEdges(records, result.Edges, cfg.ProjectConfig().Graph)
			if err != nil {
				return err
			}
			logger.Info("Validated inferred edges.", "proposed", len(result.Edges),
				"accepted", len(set.Accepted), "rejected", len(set.Rejected))

			if flagJSON {
				if err := outputJSON(struct {
					*claude.EdgeSet
					Summary string `json:"summary"`
				}{set, result.Summary}); err != nil {
					return err
				}
			} else {
				printEdgeSet(os.Stderr, set, len(result.Edges), result.Summary)
			}

			if !flagApply {
				if !flagJSON {
					fmt.Fprintf(os.Stderr, "\n🎯 %s\n", ui.Yellow("Dry run — use --apply to write the merged task file."))
				}
				return nil
			}
			return writeRecords(flagOutput, set)
		},
	}

	cmd.Flags().BoolVar(&flagApply, "apply", false, "Write the merged task CSV (default: dry-run)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model to use (overrides config)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "File for the merged task CSV with --apply (default: stdout)")
	cmd.Flags().StringVar(&flagFromFile, "from-file", "", "Load inferred edges from a JSON file instead of calling Claude")

	return cmd
}

func printEdgeSet(w io.Writer, set *claude.EdgeSet, proposed int, summary string) {
	for _, r := range set.Rejected {
		fmt.Fprintf(w, "  %s %d after %d: %s\n", ui.Yellow("⏭️  SKIP:"), r.TaskID, r.PredecessorID, r.Why)
	}

	fmt.Fprintf(w, "\n🔗 Inferred %s predecessors (%d proposed, %d after validation):\n\n",
		ui.Bold(len(set.Accepted)), proposed, len(set.Accepted))
	for _, e := range set.Accepted {
		fmt.Fprintf(w, "  %s %s after %s  — %s\n",
			ui.Cyan("→"), ui.BoldMagenta(e.TaskID), ui.BoldMagenta(e.PredecessorID), ui.Dim(e.Reason))
	}
	if summary != "" {
		fmt.Fprintf(w, "\n💡 %s %s\n", ui.BoldWhite("Summary:"), summary)
	}
}

func writeRecords(path string, set *claude.EdgeSet) error {
	if path == "" {
		return export.WriteRecordsCSV(os.Stdout, set.Records)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteRecordsCSV(f, set.Records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\n🏁 Applied %s predecessors, wrote %s\n", ui.BoldGreen(len(set.Accepted)), path)
	return nil
}
