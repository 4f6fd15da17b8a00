package mcp

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/spikerecon/internal/epochmodel"
	"github.com/nvandessel/spikerecon/internal/models"
	"github.com/nvandessel/spikerecon/internal/ratelimit"
	"github.com/nvandessel/spikerecon/internal/record"
	"github.com/nvandessel/spikerecon/internal/store"
)

func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	tmpDir := t.TempDir()

	st, err := store.Open(filepath.Join(tmpDir, ".spikerecon", "analysis.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	server := newServer(&Config{Name: "test-server", Version: "v1.0.0", Root: tmpDir}, st)
	t.Cleanup(func() { server.Close() })
	return server, tmpDir
}

// engineLog builds a log with two epochs triggered by neuron 0. The second
// spike of the first epoch fires on follower.
func engineLog(t *testing.T, engine string, follower int) *epochmodel.EngineAnalysis {
	t.Helper()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	syn, str := 1, int64(7)
	ev := func(tick int64, kind models.EventKind, neuron int) models.RawEvent {
		return models.RawEvent{Tick: tick, Time: base.Add(time.Duration(tick) * time.Millisecond), Kind: kind, Neuron: neuron}
	}
	adjust := ev(3, models.KindSynapseAdjust, follower)
	adjust.SynapseIndex, adjust.SynapseStrength = &syn, &str

	events := []models.RawEvent{
		ev(1, models.KindSpike, 0),
		ev(3, models.KindSpike, follower),
		adjust,
		ev(9, models.KindSpike, 0),
	}
	return epochmodel.Analyze(record.NewSource(models.EngineBinding{Engine: engine}, events), engine, 0)
}

func saveRun(t *testing.T, s *Server, engines ...*epochmodel.EngineAnalysis) string {
	t.Helper()
	id, err := s.store.SaveRun(context.Background(), store.RunRecord{RecordPath: "/records/run1", TriggerNeuron: 0, Engines: engines})
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	return id
}

func TestHandleRuns(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, output, err := server.handleRuns(ctx, nil, RunsInput{})
	if err != nil {
		t.Fatalf("handleRuns failed: %v", err)
	}
	if output.Count != 0 || len(output.Runs) != 0 {
		t.Errorf("empty store returned %d runs", output.Count)
	}

	id := saveRun(t, server, engineLog(t, "Research1", 4), engineLog(t, "Research2", 4))

	_, output, err = server.handleRuns(ctx, nil, RunsInput{Limit: 5})
	if err != nil {
		t.Fatalf("handleRuns failed: %v", err)
	}
	if output.Count != 1 || output.Runs[0].ID != id {
		t.Fatalf("runs = %+v, want the saved run", output.Runs)
	}
	run := output.Runs[0]
	if run.RecordPath != "/records/run1" || len(run.Engines) != 2 {
		t.Errorf("run = %+v", run)
	}
	if e := run.Engines[1]; e.Engine != "Research2" || e.Epochs != 2 || e.Spikes != 3 || e.Adjustments != 1 {
		t.Errorf("engine summary = %+v", e)
	}

	if _, _, err := server.handleRuns(ctx, nil, RunsInput{Limit: -1}); err == nil {
		t.Error("negative limit should fail")
	}
}

func TestHandleEpochs(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	id := saveRun(t, server, engineLog(t, "Research1", 4))

	tests := []struct {
		name       string
		args       EpochsInput
		wantErr    string
		wantDetail bool
	}{
		{name: "latest summary", args: EpochsInput{Engine: "Research1"}},
		{name: "by prefix with detail", args: EpochsInput{Run: id[:8], Engine: "Research1", Epoch: 1}, wantDetail: true},
		{name: "missing engine arg", args: EpochsInput{}, wantErr: "engine is required"},
		{name: "unknown engine", args: EpochsInput{Engine: "Research9"}, wantErr: "engine not found"},
		{name: "epoch out of range", args: EpochsInput{Engine: "Research1", Epoch: 3}, wantErr: "out of range"},
		{name: "unknown run", args: EpochsInput{Run: "zzzz", Engine: "Research1"}, wantErr: "run not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := server.handleEpochs(ctx, nil, tt.args)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("handleEpochs failed: %v", err)
			}

			if output.Run != id || output.Count != 2 {
				t.Errorf("output = %+v", output)
			}
			want := []EpochSummary{
				{Epoch: 1, TriggerTick: 1, Spikes: 2, Adjustments: 1},
				{Epoch: 2, TriggerTick: 9, Spikes: 1, Adjustments: 0},
			}
			for i := range want {
				if output.Epochs[i] != want[i] {
					t.Errorf("epoch %d = %+v, want %+v", i+1, output.Epochs[i], want[i])
				}
			}

			if tt.wantDetail {
				if output.Detail == nil || len(output.Detail.Spikes) != 2 {
					t.Fatalf("detail = %+v", output.Detail)
				}
				if adj := output.Detail.Spikes[1].Adjustments; len(adj) != 1 || adj[0].Strength != 7 {
					t.Errorf("adjustments = %+v", adj)
				}
			} else if output.Detail != nil {
				t.Error("detail should be omitted without an epoch")
			}
		})
	}
}

func TestHandleCompare(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	saveRun(t, server, engineLog(t, "Research1", 4), engineLog(t, "Research2", 4), engineLog(t, "Research3", 5))

	t.Run("identical replicas", func(t *testing.T) {
		_, output, err := server.handleCompare(ctx, nil, CompareInput{EngineA: "Research1", EngineB: "Research2"})
		if err != nil {
			t.Fatalf("handleCompare failed: %v", err)
		}
		if !output.Identical || output.Comparison.Divergence != nil {
			t.Errorf("output = %+v, want identical", output)
		}
		if !strings.Contains(output.Message, "agree on all 2 epochs") {
			t.Errorf("message = %q", output.Message)
		}
	})

	t.Run("divergent replicas", func(t *testing.T) {
		_, output, err := server.handleCompare(ctx, nil, CompareInput{Run: "latest", EngineA: "Research1", EngineB: "Research3"})
		if err != nil {
			t.Fatalf("handleCompare failed: %v", err)
		}
		if output.Identical {
			t.Fatal("replicas with different followers should diverge")
		}
		d := output.Comparison.Divergence
		if d.Epoch != 1 || d.Spike != 2 {
			t.Errorf("divergence = %+v, want epoch 1 spike 2", d)
		}
		if !strings.Contains(output.Message, "diverge at epoch 1 spike 2") {
			t.Errorf("message = %q", output.Message)
		}
	})

	t.Run("unknown engine", func(t *testing.T) {
		_, _, err := server.handleCompare(ctx, nil, CompareInput{EngineA: "Research1", EngineB: "Nope"})
		if !errors.Is(err, store.ErrEngineNotFound) {
			t.Errorf("error = %v, want ErrEngineNotFound", err)
		}
	})

	t.Run("missing engines", func(t *testing.T) {
		if _, _, err := server.handleCompare(ctx, nil, CompareInput{EngineA: "Research1"}); err == nil {
			t.Error("expected error when engine_b is missing")
		}
	})
}

func TestHandlers_WriteAudit(t *testing.T) {
	server, tmpDir := setupTestServer(t)
	ctx := context.Background()

	if _, _, err := server.handleRuns(ctx, nil, RunsInput{}); err != nil {
		t.Fatal(err)
	}
	_, _, _ = server.handleEpochs(ctx, nil, EpochsInput{Engine: "Research1"})

	entries := readAudit(t, filepath.Join(tmpDir, ".spikerecon"))
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want 2", len(entries))
	}
	if entries[0].Tool != "spikerecon_runs" || entries[0].Status != "success" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Tool != "spikerecon_epochs" || entries[1].Status != "error" {
		t.Errorf("second entry = %+v", entries[1])
	}
	if entries[1].Params["engine"] != "Research1" {
		t.Errorf("engine param = %q", entries[1].Params["engine"])
	}
}

func TestHandlers_RateLimited(t *testing.T) {
	server, _ := setupTestServer(t)
	server.toolLimiters = ratelimit.ToolLimiters{"spikerecon_runs": ratelimit.NewLimiter(0, 1)}
	ctx := context.Background()

	if _, _, err := server.handleRuns(ctx, nil, RunsInput{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, _, err := server.handleRuns(ctx, nil, RunsInput{})
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
}
