package main

import (
	"fmt"

	"github.com/nvandessel/spikerecon/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List analysis runs saved with 'epochs --save'",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withStore(cmd, func(s *session, st *store.SQLiteStore) error {
				runs, err := st.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if s.jsonOut {
					if runs == nil {
						runs = []store.RunSummary{}
					}
					return s.encode(runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(s.out, "No saved runs.")
					return nil
				}
				for _, r := range runs {
					fmt.Fprintf(s.out, "%s  %s  trigger %d  %d engines  %s\n",
						r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.TriggerNeuron, r.Engines, r.RecordPath)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int("limit", 0, "Show at most this many runs (default: all)")

	cmd.AddCommand(newRunsShowCmd(), newRunsDeleteCmd())
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run]",
		Short: "Show the engines of a saved run (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := store.LatestRun
			if len(args) == 1 {
				ref = args[0]
			}
			return withStore(cmd, func(s *session, st *store.SQLiteStore) error {
				run, err := st.ResolveRun(cmd.Context(), ref)
				if err != nil {
					return err
				}
				engines, err := st.Engines(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if s.jsonOut {
					return s.encode(map[string]any{"run": run, "engines": engines})
				}
				fmt.Fprintf(s.out, "Run %s (trigger neuron %d)\n", run.ID, run.TriggerNeuron)
				for _, e := range engines {
					fmt.Fprintf(s.out, "  %-16s %4d epochs %6d spikes %6d adjustments  period %s\n",
						e.Engine, e.Epochs, e.Spikes, e.Adjustments, e.Timing.TickPeriod)
				}
				return nil
			})
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run>",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *session, st *store.SQLiteStore) error {
				run, err := st.ResolveRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := st.DeleteRun(cmd.Context(), run.ID); err != nil {
					return err
				}
				if s.jsonOut {
					return s.encode(map[string]string{"status": "deleted", "run": run.ID})
				}
				fmt.Fprintf(s.out, "Deleted run %s\n", run.ID)
				return nil
			})
		},
	}
}

// withStore opens the analysis database for the duration of fn.
func withStore(cmd *cobra.Command, fn func(*session, *store.SQLiteStore) error) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(s.cfg.StorePath(s.root))
	if err != nil {
		return fmt.Errorf("failed to open analysis store: %w", err)
	}
	defer st.Close()
	return fn(s, st)
}
