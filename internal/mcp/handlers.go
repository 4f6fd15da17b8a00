package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/spikerecon/internal/epochmodel"
)

// registerTools registers the read-only spikerecon tools.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spikerecon_runs",
		Description: "List saved analysis runs with per-engine epoch, spike and timing summaries",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spikerecon_epochs",
		Description: "Show the epoch model of one engine in a saved run, or one epoch in full",
	}, s.handleEpochs)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spikerecon_compare",
		Description: "Compare the epoch models of two replica engines in a saved run and report the first divergence",
	}, s.handleCompare)
}

// handleRuns implements the spikerecon_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spikerecon_runs", start, retErr, sanitizeToolParams(map[string]any{"limit": args.Limit}))
	}()

	if err := s.toolLimiters.CheckLimit("spikerecon_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	if args.Limit < 0 {
		return nil, RunsOutput{}, fmt.Errorf("limit must not be negative")
	}

	runs, err := s.store.ListRuns(ctx, args.Limit)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	items := make([]RunItem, 0, len(runs))
	for _, r := range runs {
		engines, err := s.store.Engines(ctx, r.ID)
		if err != nil {
			return nil, RunsOutput{}, fmt.Errorf("failed to load engines of run %s: %w", r.ID, err)
		}
		items = append(items, RunItem{
			ID:            r.ID,
			CreatedAt:     r.CreatedAt,
			RecordPath:    r.RecordPath,
			TriggerNeuron: r.TriggerNeuron,
			Engines:       engines,
		})
	}

	return nil, RunsOutput{Runs: items, Count: len(items)}, nil
}

// handleEpochs implements the spikerecon_epochs tool.
func (s *Server) handleEpochs(ctx context.Context, req *sdk.CallToolRequest, args EpochsInput) (_ *sdk.CallToolResult, _ EpochsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spikerecon_epochs", start, retErr, sanitizeToolParams(map[string]any{
			"run": args.Run, "engine": args.Engine, "epoch": args.Epoch,
		}))
	}()

	if err := s.toolLimiters.CheckLimit("spikerecon_epochs"); err != nil {
		return nil, EpochsOutput{}, err
	}

	if args.Engine == "" {
		return nil, EpochsOutput{}, fmt.Errorf("engine is required")
	}

	run, err := s.store.ResolveRun(ctx, args.Run)
	if err != nil {
		return nil, EpochsOutput{}, err
	}
	epochs, err := s.store.LoadEpochs(ctx, run.ID, args.Engine)
	if err != nil {
		return nil, EpochsOutput{}, err
	}

	out := EpochsOutput{
		Run:    run.ID,
		Engine: args.Engine,
		Epochs: make([]EpochSummary, 0, len(epochs)),
		Count:  len(epochs),
	}
	for i, e := range epochs {
		sum := EpochSummary{Epoch: i + 1, Spikes: len(e.Spikes), Adjustments: e.AdjustmentCount()}
		if t := e.Trigger(); t != nil {
			sum.TriggerTick = t.Tick
		}
		out.Epochs = append(out.Epochs, sum)
	}

	if args.Epoch != 0 {
		if args.Epoch < 1 || args.Epoch > len(epochs) {
			return nil, EpochsOutput{}, fmt.Errorf("epoch %d out of range: engine %s has %d epochs", args.Epoch, args.Engine, len(epochs))
		}
		out.Detail = epochs[args.Epoch-1]
	}
	return nil, out, nil
}

// handleCompare implements the spikerecon_compare tool.
func (s *Server) handleCompare(ctx context.Context, req *sdk.CallToolRequest, args CompareInput) (_ *sdk.CallToolResult, _ CompareOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spikerecon_compare", start, retErr, sanitizeToolParams(map[string]any{
			"run": args.Run, "engine_a": args.EngineA, "engine_b": args.EngineB,
		}))
	}()

	if err := s.toolLimiters.CheckLimit("spikerecon_compare"); err != nil {
		return nil, CompareOutput{}, err
	}

	if args.EngineA == "" || args.EngineB == "" {
		return nil, CompareOutput{}, fmt.Errorf("engine_a and engine_b are required")
	}

	run, err := s.store.ResolveRun(ctx, args.Run)
	if err != nil {
		return nil, CompareOutput{}, err
	}
	a, err := s.store.LoadEpochs(ctx, run.ID, args.EngineA)
	if err != nil {
		return nil, CompareOutput{}, err
	}
	b, err := s.store.LoadEpochs(ctx, run.ID, args.EngineB)
	if err != nil {
		return nil, CompareOutput{}, err
	}

	c := epochmodel.Compare(a, b)
	return nil, CompareOutput{
		Run:        run.ID,
		EngineA:    args.EngineA,
		EngineB:    args.EngineB,
		Identical:  c.Identical(),
		Comparison: c,
		Message:    compareMessage(args.EngineA, args.EngineB, c),
	}, nil
}

func compareMessage(a, b string, c *epochmodel.Comparison) string {
	if c.Identical() {
		return fmt.Sprintf("%s and %s agree on all %d epochs", a, b, c.EpochsA)
	}
	return fmt.Sprintf("%s and %s diverge at %s", a, b, c.Divergence)
}
