package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dhenderson/criticalpy/internal/cpm"
	"github.com/dhenderson/criticalpy/internal/reporter"
	"github.com/dhenderson/criticalpy/internal/store"
	"github.com/dhenderson/criticalpy/internal/ui"
)

func historyCmd() *cobra.Command {
	var flagDelete bool

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List saved schedule runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := store.Open(ctx, cfg.Store.Path, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) == 0 {
				if flagDelete {
					return fmt.Errorf("--delete needs a run id")
				}
				runs, err := s.ListRuns(ctx)
				if err != nil {
					return err
				}
				if flagJSON {
					return outputJSON(runs)
				}
				if len(runs) == 0 {
					fmt.Println(ui.Dim("No saved runs. Use `critpath schedule --save` to record one."))
					return nil
				}
				fmt.Printf("%s\n", ui.BoldCyan("Saved runs"))
				for _, r := range runs {
					fmt.Printf("  %s  %s  %-30s finish %s  %d tasks  %s\n",
						ui.BoldMagenta(fmt.Sprintf("#%-4d", r.ID)),
						ui.Dim(r.CreatedAt.Local().Format("2006-01-02 15:04")),
						r.Source, ui.Bold(r.Finish), r.TaskCount,
						ui.Yellow(joinInts(r.CriticalPath, " → ")))
				}
				return nil
			}

			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			if flagDelete {
				if err := s.DeleteRun(ctx, runID); err != nil {
					return err
				}
				fmt.Printf("%s Deleted run %d\n", ui.OKIcon(), runID)
				return nil
			}

			run, err := s.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			tasks, err := s.LoadRun(ctx, runID)
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(struct {
					store.Run
					Tasks []cpm.ScheduledTask `json:"tasks"`
				}{run, tasks})
			}
			fmt.Printf("🎯 %s %s %s\n", ui.BoldCyan("Run"), ui.BoldMagenta(run.ID), ui.Dim(run.Source))
			fmt.Printf("Saved:     %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Printf("Finish:    %s\n", ui.Bold(run.Finish))
			fmt.Printf("⚡ Critical path: %s\n\n", ui.BoldYellow(joinInts(run.CriticalPath, " → ")))
			reporter.PrintTable(os.Stdout, tasks)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagDelete, "delete", false, "Delete the given run")

	return cmd
}
