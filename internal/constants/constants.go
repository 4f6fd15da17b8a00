// Package constants provides named constants used throughout the spikerecon codebase.
// This centralizes file names and defaults shared by the CLI and the pipeline.
package constants

// Record layout constants
const (
	// DefaultRecordFile is the per-engine event log name inside each engine directory.
	DefaultRecordFile = "ModelEngineRecord.csv"

	// DefaultDeploymentMapFile lists the engines of a deployment and their index ranges.
	DefaultDeploymentMapFile = "DeploymentMap.json"

	// DefaultCleanRecordFile is the full-run table written by reconstruction.
	DefaultCleanRecordFile = "CleanRecord.csv"

	// DefaultConfigFile is looked up in the record directory when --config is not given.
	DefaultConfigFile = "spikerecon.yaml"

	// StateDir holds the analysis database and decision traces.
	StateDir = ".spikerecon"

	// AnalysisDBFile is the SQLite database for saved epoch models.
	AnalysisDBFile = "analysis.db"
)

// Epoch table naming
const (
	// EpochFilePrefix starts every epoch table name, e.g. "epoch3.csv".
	EpochFilePrefix = "epoch"

	// EpochFileExt ends every epoch table name.
	EpochFileExt = ".csv"
)

// Record columns. Column order in the log is not significant.
const (
	ColumnTick            = "tick"
	ColumnTime            = "time"
	ColumnEventType       = "Neuron-Event-Type"
	ColumnNeuronIndex     = "Neuron-Index"
	ColumnActivation      = "Neuron-Activation"
	ColumnHypersensitive  = "Hypersensitive"
	ColumnSynapseIndex    = "Synapse-Index"
	ColumnSynapseStrength = "Synapse-Strength"

	// NotApplicable marks an absent synapse field.
	NotApplicable = "N/A"
)

// Timing constants
const (
	// DefaultTickTolerance is the relative error allowed between a target tick
	// period and the measured one before an engine is reported as lagging.
	DefaultTickTolerance = 0.1
)
