// Package store persists epoch models per analysis run so replica engines
// can be compared later without re-reading their logs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/spikerecon/internal/epochmodel"
	"github.com/nvandessel/spikerecon/internal/models"
)

// ErrRunNotFound is returned when no run matches an id or prefix.
var ErrRunNotFound = errors.New("run not found")

// ErrEngineNotFound is returned when a run has no analysis for an engine.
var ErrEngineNotFound = errors.New("engine not found in run")

// LatestRun may be passed wherever a run id is accepted.
const LatestRun = "latest"

// RunRecord is everything saved for one analysis run.
type RunRecord struct {
	ID            string
	CreatedAt     time.Time
	RecordPath    string
	TriggerNeuron int
	Engines       []*epochmodel.EngineAnalysis
}

// RunSummary describes a saved run.
type RunSummary struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	RecordPath    string    `json:"record_path"`
	TriggerNeuron int       `json:"trigger_neuron"`
	Engines       int       `json:"engines"`
}

// EngineSummary is the saved analysis of one engine without its epochs.
type EngineSummary struct {
	Engine      string            `json:"engine"`
	Events      int               `json:"events"`
	Epochs      int               `json:"epochs"`
	Spikes      int               `json:"spikes"`
	Adjustments int               `json:"adjustments"`
	Dropped     int               `json:"dropped_adjustments"`
	Timing      epochmodel.Timing `json:"timing"`
}

// AnalysisStore reads and writes analysis runs.
type AnalysisStore interface {
	SaveRun(ctx context.Context, run RunRecord) (string, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	// ResolveRun accepts a full id, a unique id prefix or LatestRun.
	ResolveRun(ctx context.Context, ref string) (*RunSummary, error)

	Engines(ctx context.Context, runID string) ([]EngineSummary, error)
	LoadEpochs(ctx context.Context, runID, engine string) ([]*models.Epoch, error)
	DeleteRun(ctx context.Context, runID string) error
	Close() error
}
