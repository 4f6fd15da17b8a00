package main

import (
	"fmt"

	"github.com/nvandessel/spikerecon/internal/epochmodel"
	"github.com/nvandessel/spikerecon/internal/models"
	"github.com/nvandessel/spikerecon/internal/store"
	"github.com/spf13/cobra"
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <engineA> <engineB>",
		Short: "Compare the epoch models of two replica engines",
		Long: `Build the epoch models of two engines and walk them side by side.
Spikes are matched by neuron and by tick relative to their epoch's
trigger; adjustments must match exactly. The first divergence is reported.

With --run the models are read from a saved analysis run instead of the
logs ("latest" or an id prefix).`,
		Args: cobra.ExactArgs(2),
		RunE: runCompare,
	}

	cmd.Flags().Int("trigger-neuron", -1, "Engine-local neuron whose spikes start an epoch (default: config trigger.neuron)")
	cmd.Flags().String("run", "", "Compare a saved run instead of the logs")
	return cmd
}

type compareOutput struct {
	EngineA    string                 `json:"engine_a"`
	EngineB    string                 `json:"engine_b"`
	Run        string                 `json:"run,omitempty"`
	Identical  bool                   `json:"identical"`
	Comparison *epochmodel.Comparison `json:"comparison"`
}

func runCompare(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	out := compareOutput{EngineA: args[0], EngineB: args[1]}
	var a, b []*models.Epoch

	if ref, _ := cmd.Flags().GetString("run"); ref != "" {
		st, err := store.Open(s.cfg.StorePath(s.root))
		if err != nil {
			return fmt.Errorf("failed to open analysis store: %w", err)
		}
		defer st.Close()

		run, err := st.ResolveRun(cmd.Context(), ref)
		if err != nil {
			return err
		}
		out.Run = run.ID
		if a, err = st.LoadEpochs(cmd.Context(), run.ID, out.EngineA); err != nil {
			return err
		}
		if b, err = st.LoadEpochs(cmd.Context(), run.ID, out.EngineB); err != nil {
			return err
		}
	} else {
		trigger, ok := triggerNeuron(cmd, s.cfg)
		if !ok {
			return fmt.Errorf("a trigger neuron is required: pass --trigger-neuron, --run or set trigger.neuron")
		}
		bindings, err := s.bindings()
		if err != nil {
			return err
		}
		bindings, err = selectEngines(bindings, args)
		if err != nil {
			return err
		}
		analyses, err := s.analyze(bindings, trigger)
		if err != nil {
			return err
		}
		a, b = analyses[0].Epochs, analyses[1].Epochs
	}

	c := epochmodel.Compare(a, b)
	out.Identical, out.Comparison = c.Identical(), c

	if s.jsonOut {
		return s.encode(out)
	}

	fmt.Fprintf(s.out, "%-8s %14s %14s\n", "EPOCH", out.EngineA, out.EngineB)
	for _, e := range c.Epochs {
		mark := ""
		if !e.Match {
			mark = "  *"
		}
		fmt.Fprintf(s.out, "%-8d %8d/%-5d %8d/%-5d%s\n", e.Epoch, e.SpikesA, e.AdjustmentsA, e.SpikesB, e.AdjustmentsB, mark)
	}
	fmt.Fprintln(s.out)
	if c.Identical() {
		fmt.Fprintf(s.out, "%s and %s agree on all %d epochs\n", out.EngineA, out.EngineB, c.EpochsA)
	} else {
		fmt.Fprintf(s.out, "First divergence: %s\n", c.Divergence)
	}
	return nil
}
