package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhenderson/criticalpy/internal/cpm"
	"github.com/dhenderson/criticalpy/internal/ui"
	"github.com/dhenderson/criticalpy/internal/viewer"
)

func serveCmd() *cobra.Command {
	var flagAddr string

	cmd := &cobra.Command{
		Use:   "serve [tasks-file]",
		Short: "Serve the schedule as JSON, CSV and DOT over HTTP",
		Long: `Starts a local HTTP server. GET /graph returns the schedule as nodes and
edges, GET /schedule.csv and /schedule.dot export it, and POST /graph
replaces it with one computed from a JSON task list.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				p      *cpm.Project
				source string
			)
			if len(args) == 1 {
				source = args[0]
				var err error
				p, err = buildProject(source, cfg.ProjectConfig())
				if err != nil {
					return err
				}
			}

			srv := viewer.NewServer(p, source, cfg.ProjectConfig(), cfg.DOTOptions(), logger)
			ready := make(chan string, 1)
			go func() {
				if addr, ok := <-ready; ok {
					fmt.Fprintf(os.Stderr, "🌐 Serving schedule at %s\n", ui.BoldCyan("http://"+addr+"/graph"))
				}
			}()
			err := srv.ListenAndServe(cmd.Context(), flagAddr, ready)
			close(ready)
			return err
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "localhost:7171", "Listen address")

	return cmd
}
