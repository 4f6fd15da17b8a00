package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nvandessel/spikerecon/internal/config"
	"github.com/nvandessel/spikerecon/internal/logging"
	"github.com/nvandessel/spikerecon/internal/merge"
	"github.com/nvandessel/spikerecon/internal/models"
	"github.com/nvandessel/spikerecon/internal/reconstruct"
	"github.com/nvandessel/spikerecon/internal/record"
	"github.com/nvandessel/spikerecon/internal/table"
	"github.com/spf13/cobra"
)

func newReconstructCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Rebuild the activation table and epoch tables from the engine logs",
		Long: `Merge every engine log named in the deployment map into one synchronized
stream and rebuild the activation of the monitored neurons at every tick.

The full run is written to record.clean_file. Each trigger closes the
current epoch and writes it as epoch<N>.csv, numbered after the epochs
already in the output directory.

Examples:
  spikerecon reconstruct --root ./record
  spikerecon reconstruct --trigger-neuron 0 --channel Input1=3 --channel Out=2@Research2
  spikerecon reconstruct --discover --channel Input1=3   # all neurons, Input1 named`,
		RunE: runReconstruct,
	}

	cmd.Flags().Int("trigger-neuron", -1, "Global neuron index whose events open a new epoch (default: config trigger.neuron)")
	cmd.Flags().String("trigger-kind", "", "Event kind that triggers, e.g. Spike or InputSignal (default: config trigger.kind)")
	cmd.Flags().StringArray("channel", nil, "Monitored channel as [name=]index[@engine]; repeatable (default: config channels)")
	cmd.Flags().Bool("discover", false, "Monitor every neuron seen in the logs, naming the configured channels")
	cmd.Flags().String("out", "", "Output directory (default: config record.output_dir, else --root)")
	return cmd
}

// reconstructOutput is the JSON form of a reconstruction.
type reconstructOutput struct {
	RunID      string           `json:"run_id"`
	Engines    int              `json:"engines"`
	Channels   []models.Channel `json:"channels"`
	Events     int              `json:"events"`
	Rows       int              `json:"rows"`
	RunPath    string           `json:"run_path,omitempty"`
	Triggers   int              `json:"triggers"`
	EpochPaths []string         `json:"epoch_paths"`
	Discarded  int              `json:"discarded_epochs"`
	Error      string           `json:"error,omitempty"`
}

func runReconstruct(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	if kind, _ := cmd.Flags().GetString("trigger-kind"); kind != "" {
		s.cfg.Trigger.Kind = kind
	}
	kind, err := s.cfg.TriggerKind()
	if err != nil {
		return err
	}

	flagChannels, _ := cmd.Flags().GetStringArray("channel")
	if len(flagChannels) > 0 {
		s.cfg.Channels = make([]config.ChannelConfig, 0, len(flagChannels))
		for _, v := range flagChannels {
			ch, err := parseChannel(v)
			if err != nil {
				return err
			}
			s.cfg.Channels = append(s.cfg.Channels, ch)
		}
	}

	outDir := s.cfg.OutputDir(s.root)
	if out, _ := cmd.Flags().GetString("out"); out != "" {
		outDir = out
	}

	bindings, err := s.bindings()
	if err != nil {
		return err
	}
	channels, err := s.cfg.ResolveChannels(bindings)
	if err != nil {
		return err
	}

	rc := reconstruct.Config{Channels: channels}
	if discover, _ := cmd.Flags().GetBool("discover"); discover {
		names := make(map[int]string, len(channels))
		for _, ch := range channels {
			names[ch.Index] = ch.Name
		}
		rc.Channels, rc.Namer = nil, reconstruct.NamesFrom(names)
	}
	if n, ok := triggerNeuron(cmd, s.cfg); ok {
		rc.Trigger = reconstruct.KindOn(kind, n)
		s.logger.Debug("epoch trigger", "kind", kind, "neuron", n)
	}

	runID := uuid.NewString()
	decisions := logging.NewDecisionLogger(s.stateDir(), s.cfg.Logging.Level)
	defer decisions.Close()
	decisions.SetRun(runID)

	var result *reconstruct.Result
	err = record.With(s.root, s.cfg.Record.File, bindings, func(sources *record.Sources) error {
		cursors := make([]merge.Cursor, 0, len(sources.List()))
		for _, src := range sources.List() {
			s.logger.Debug("engine synchronized", "engine", src.Engine(), "events", src.Len(), "tick_offset", src.Binding().TickOffset)
			cursors = append(cursors, src)
		}

		r := reconstruct.New(rc)
		r.SetLogger(s.logger, decisions)

		var runErr error
		result, runErr = r.Run(merge.New(cursors...), &table.DirSink{Dir: outDir, RunFile: s.cfg.Record.CleanFile})
		return runErr
	})
	if result == nil {
		return err
	}

	out := reconstructOutput{
		RunID:      runID,
		Engines:    len(bindings),
		Channels:   result.Channels,
		Events:     result.Events,
		Rows:       len(result.DataRows()),
		RunPath:    result.RunPath,
		Triggers:   result.Triggers,
		EpochPaths: result.EpochPaths,
		Discarded:  result.Discarded,
	}
	if err != nil {
		out.Error = err.Error()
	}

	if s.jsonOut {
		if encErr := s.encode(out); encErr != nil && err == nil {
			err = encErr
		}
		return err
	}

	w := s.out
	fmt.Fprintf(w, "Reconstructed %d channels from %d engines (%d events)\n", len(out.Channels), out.Engines, out.Events)
	if out.RunPath != "" {
		fmt.Fprintf(w, "  run table: %s (%d rows)\n", out.RunPath, out.Rows)
	}
	fmt.Fprintf(w, "  epochs:    %d written, %d discarded (%d triggers)\n", len(out.EpochPaths), out.Discarded, out.Triggers)
	for i, p := range out.EpochPaths {
		fmt.Fprintf(w, "    %s (%d rows)\n", filepath.Base(p), len(result.Epochs[i].Rows))
	}
	return err
}
