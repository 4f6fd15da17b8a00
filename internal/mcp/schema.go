package mcp

import (
	"time"

	"github.com/nvandessel/spikerecon/internal/epochmodel"
	"github.com/nvandessel/spikerecon/internal/models"
	"github.com/nvandessel/spikerecon/internal/store"
)

// RunsInput defines the input for the spikerecon_runs tool.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to return, newest first (default: all)"`
}

// RunsOutput defines the output for the spikerecon_runs tool.
type RunsOutput struct {
	Runs  []RunItem `json:"runs" jsonschema:"Saved analysis runs, newest first"`
	Count int       `json:"count" jsonschema:"Number of runs returned"`
}

// RunItem is one saved run with its per-engine summaries.
type RunItem struct {
	ID            string                `json:"id"`
	CreatedAt     time.Time             `json:"created_at"`
	RecordPath    string                `json:"record_path"`
	TriggerNeuron int                   `json:"trigger_neuron"`
	Engines       []store.EngineSummary `json:"engines"`
}

// EpochsInput defines the input for the spikerecon_epochs tool.
type EpochsInput struct {
	Run    string `json:"run,omitempty" jsonschema:"Run id, unique id prefix or 'latest' (default: latest)"`
	Engine string `json:"engine" jsonschema:"Engine whose epoch model to return"`
	Epoch  int    `json:"epoch,omitempty" jsonschema:"1-based epoch to return in full; 0 returns a summary of every epoch"`
}

// EpochsOutput defines the output for the spikerecon_epochs tool.
type EpochsOutput struct {
	Run    string         `json:"run" jsonschema:"Resolved run id"`
	Engine string         `json:"engine" jsonschema:"Engine name"`
	Epochs []EpochSummary `json:"epochs" jsonschema:"One entry per epoch"`
	Count  int            `json:"count" jsonschema:"Number of epochs in the engine's model"`
	Detail *models.Epoch  `json:"detail,omitempty" jsonschema:"Full spikes and adjustments of the requested epoch"`
}

// EpochSummary describes one epoch without its spikes.
type EpochSummary struct {
	Epoch       int   `json:"epoch"`
	TriggerTick int64 `json:"trigger_tick"`
	Spikes      int   `json:"spikes"`
	Adjustments int   `json:"adjustments"`
}

// CompareInput defines the input for the spikerecon_compare tool.
type CompareInput struct {
	Run     string `json:"run,omitempty" jsonschema:"Run id, unique id prefix or 'latest' (default: latest)"`
	EngineA string `json:"engine_a" jsonschema:"First replica engine"`
	EngineB string `json:"engine_b" jsonschema:"Second replica engine"`
}

// CompareOutput defines the output for the spikerecon_compare tool.
type CompareOutput struct {
	Run        string                 `json:"run" jsonschema:"Resolved run id"`
	EngineA    string                 `json:"engine_a"`
	EngineB    string                 `json:"engine_b"`
	Identical  bool                   `json:"identical" jsonschema:"True when no divergence was found"`
	Comparison *epochmodel.Comparison `json:"comparison" jsonschema:"Per-epoch counts and the first divergence"`
	Message    string                 `json:"message" jsonschema:"Human-readable result message"`
}
