package main

import (
	"fmt"

	"github.com/nvandessel/spikerecon/internal/epochmodel"
	"github.com/spf13/cobra"
)

func newSpeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speed",
		Short: "Measure each engine's wall-clock time per tick",
		Long: `Measure how long each engine ran, from its first to its last logged
timestamp, and the resulting time per tick. With a target period each
engine is checked against it within the configured tolerance.

Examples:
  spikerecon speed
  spikerecon speed --target 1ms --tolerance 0.05`,
		RunE: runSpeed,
	}

	cmd.Flags().Duration("target", 0, "Intended time per tick (default: config speed.target_period)")
	cmd.Flags().Float64("tolerance", 0, "Allowed relative error (default: config speed.tolerance)")
	return cmd
}

func runSpeed(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	target := s.cfg.Speed.TargetPeriod
	if cmd.Flags().Changed("target") {
		target, _ = cmd.Flags().GetDuration("target")
	}
	tol := s.cfg.Speed.Tolerance
	if cmd.Flags().Changed("tolerance") {
		tol, _ = cmd.Flags().GetFloat64("tolerance")
	}

	bindings, err := s.bindings()
	if err != nil {
		return err
	}
	// No neuron index is negative, so no epochs are built.
	analyses, err := s.analyze(bindings, -1)
	if err != nil {
		return err
	}

	reports := make([]epochmodel.SpeedReport, 0, len(analyses))
	for _, a := range analyses {
		r := epochmodel.Speed(a, target, tol)
		if target > 0 && !r.OnTarget {
			s.logger.Warn("engine off target", "engine", r.Engine, "period", r.Period, "target", target)
		}
		reports = append(reports, r)
	}

	if s.jsonOut {
		return s.encode(reports)
	}

	fmt.Fprintf(s.out, "%-16s %10s %16s %14s  %s\n", "ENGINE", "TICKS", "DURATION", "PERIOD", "STATUS")
	for _, r := range reports {
		status := "-"
		if target > 0 {
			status = "off target"
			if r.OnTarget {
				status = "ok"
			}
		}
		fmt.Fprintf(s.out, "%-16s %10d %16s %14s  %s\n", r.Engine, r.Ticks, r.Duration, r.Period, status)
	}
	return nil
}
