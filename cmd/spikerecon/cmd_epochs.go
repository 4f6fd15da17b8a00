package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/nvandessel/spikerecon/internal/epochmodel"
	"github.com/nvandessel/spikerecon/internal/store"
	"github.com/spf13/cobra"
)

func newEpochsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epochs",
		Short: "Build the epoch model of each engine",
		Long: `Group each engine's spikes into epochs that start at a spike of the
trigger neuron, and attach every synapse adjustment to the spike that
precedes it.

Each engine is read on its own, so --trigger-neuron is an engine-local
index. With --save the models are stored in the analysis database for
later comparison and for the MCP tools.

Examples:
  spikerecon epochs --trigger-neuron 0
  spikerecon epochs --trigger-neuron 0 --engine Research1 --verbose
  spikerecon epochs --trigger-neuron 0 --save`,
		RunE: runEpochs,
	}

	cmd.Flags().Int("trigger-neuron", -1, "Engine-local neuron whose spikes start an epoch (default: config trigger.neuron)")
	cmd.Flags().StringArray("engine", nil, "Restrict to this engine; repeatable (default: all engines)")
	cmd.Flags().Bool("verbose", false, "List every spike and adjustment")
	cmd.Flags().Bool("save", false, "Save the models to the analysis database")
	return cmd
}

type epochsOutput struct {
	RunID   string                       `json:"run_id,omitempty"`
	Engines []*epochmodel.EngineAnalysis `json:"engines"`
}

func runEpochs(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	trigger, ok := triggerNeuron(cmd, s.cfg)
	if !ok {
		return fmt.Errorf("a trigger neuron is required: pass --trigger-neuron or set trigger.neuron")
	}

	bindings, err := s.bindings()
	if err != nil {
		return err
	}
	engines, _ := cmd.Flags().GetStringArray("engine")
	bindings, err = selectEngines(bindings, engines)
	if err != nil {
		return err
	}

	analyses, err := s.analyze(bindings, trigger)
	if err != nil {
		return err
	}

	out := epochsOutput{Engines: analyses}
	if save, _ := cmd.Flags().GetBool("save"); save {
		id, err := s.saveRun(cmd, trigger, analyses)
		if err != nil {
			return err
		}
		out.RunID = id
	}

	if s.jsonOut {
		return s.encode(out)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	for _, a := range analyses {
		printAnalysis(s.out, a, verbose)
	}
	if out.RunID != "" {
		fmt.Fprintf(s.out, "Saved run %s\n", out.RunID)
	}
	return nil
}

func (s *session) saveRun(cmd *cobra.Command, trigger int, analyses []*epochmodel.EngineAnalysis) (string, error) {
	st, err := store.Open(s.cfg.StorePath(s.root))
	if err != nil {
		return "", fmt.Errorf("failed to open analysis store: %w", err)
	}
	defer st.Close()

	recordPath, err := filepath.Abs(s.root)
	if err != nil {
		recordPath = s.root
	}

	id, err := st.SaveRun(cmd.Context(), store.RunRecord{
		RecordPath:    recordPath,
		TriggerNeuron: trigger,
		Engines:       analyses,
	})
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}
	s.logger.Info("saved analysis run", "run", id, "engines", len(analyses))
	return id, nil
}

func printAnalysis(w io.Writer, a *epochmodel.EngineAnalysis, verbose bool) {
	fmt.Fprintf(w, "%s: %d epochs, %d spikes, %d adjustments", a.Engine, len(a.Epochs), a.Spikes, a.Adjustments)
	if a.Dropped > 0 {
		fmt.Fprintf(w, " (%d dropped)", a.Dropped)
	}
	fmt.Fprintln(w)

	for i, e := range a.Epochs {
		fmt.Fprintf(w, "  epoch %d: trigger tick %d, %d spikes, %d adjustments\n",
			i+1, e.Trigger().Tick, len(e.Spikes), e.AdjustmentCount())
		if !verbose {
			continue
		}
		for _, sp := range e.Spikes {
			fmt.Fprintf(w, "    tick %d neuron %d\n", sp.Tick, sp.Neuron)
			for _, adj := range sp.Adjustments {
				fmt.Fprintf(w, "      neuron %d synapse %d -> %d\n", adj.Neuron, adj.Synapse, adj.Strength)
			}
		}
	}
}
