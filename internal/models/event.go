package models

import (
	"fmt"
	"time"
)

// EventKind categorizes a neuron event recorded by an engine.
type EventKind int

const (
	KindInputSignal    EventKind = 0 // External input applied to a neuron
	KindDecay          EventKind = 1 // Activation decayed toward rest
	KindSpike          EventKind = 2 // Neuron fired
	KindRefractory     EventKind = 3 // Neuron entered or left refractory state
	KindSynapseAdjust  EventKind = 4 // A synapse strength was adjusted
	KindHyperSensitive EventKind = 5 // Neuron became hypersensitive
)

var kindNames = map[EventKind]string{
	KindInputSignal:    "InputSignal",
	KindDecay:          "Decay",
	KindSpike:          "Spike",
	KindRefractory:     "Refractory",
	KindSynapseAdjust:  "SynapseAdjust",
	KindHyperSensitive: "HyperSensitive",
}

// Valid returns true if the kind is one of the recorded event kinds.
func (k EventKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// DrivesChannel reports whether events of this kind carry an activation
// value that updates a reconstructed channel.
func (k EventKind) DrivesChannel() bool {
	switch k {
	case KindDecay, KindSpike, KindRefractory, KindSynapseAdjust:
		return true
	}
	return false
}

// String returns the name of the kind.
func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind maps a kind name (case-sensitive, as printed by String)
// back to its EventKind.
func ParseEventKind(s string) (EventKind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// EngineBinding places one engine's log in the global tick and neuron space.
type EngineBinding struct {
	// Engine is the engine identifier; it also names the engine's record directory.
	Engine string `json:"engine" yaml:"engine"`

	// IndexOffset is added to every local neuron index.
	IndexOffset int `json:"offset" yaml:"offset"`

	// NeuronCount is the size of the engine's slice of the index space.
	NeuronCount int `json:"count" yaml:"count"`

	// TickOffset is added to every local tick. Computed by synchronization.
	TickOffset int64 `json:"tick_offset" yaml:"tick_offset"`
}

// Owns reports whether a global neuron index falls in this engine's range.
func (b EngineBinding) Owns(global int) bool {
	return global >= b.IndexOffset && global < b.IndexOffset+b.NeuronCount
}

// RawEvent is one row of an engine record, in engine-local space.
type RawEvent struct {
	Tick           int64
	Time           time.Time
	Kind           EventKind
	Neuron         int
	Activation     int64
	Hypersensitive bool

	// SynapseIndex and SynapseStrength are nil when the log says "N/A".
	SynapseIndex    *int
	SynapseStrength *int64

	// Row is the 1-based data row in the source log, for error reporting.
	Row int
}

// SynchronizedEvent is a RawEvent translated into global tick and neuron space.
type SynchronizedEvent struct {
	Tick           int64
	Time           time.Time
	Kind           EventKind
	Neuron         int
	Activation     int64
	Hypersensitive bool

	SynapseIndex    *int
	SynapseStrength *int64

	// Engine identifies the engine that logged the event.
	Engine string
	// Source is the position of that engine in binding order.
	Source int
	// Row is the data row in the engine's log.
	Row int
}

// Translate derives the synchronized form of a raw event.
func Translate(raw RawEvent, binding EngineBinding, source int) SynchronizedEvent {
	return SynchronizedEvent{
		Tick:            raw.Tick + binding.TickOffset,
		Time:            raw.Time,
		Kind:            raw.Kind,
		Neuron:          raw.Neuron + binding.IndexOffset,
		Activation:      raw.Activation,
		Hypersensitive:  raw.Hypersensitive,
		SynapseIndex:    raw.SynapseIndex,
		SynapseStrength: raw.SynapseStrength,
		Engine:          binding.Engine,
		Source:          source,
		Row:             raw.Row,
	}
}

// Channel is one monitored neuron in a reconstructed table.
type Channel struct {
	Name  string `json:"name" yaml:"name"`
	Index int    `json:"index" yaml:"index"`
}

// Label returns the column header for the channel, e.g. "Input1(3)".
func (c Channel) Label() string {
	return fmt.Sprintf("%s(%d)", c.Name, c.Index)
}

// DefaultChannelName synthesizes a name for an unnamed neuron.
func DefaultChannelName(index int) string {
	return fmt.Sprintf("Neuron%d", index)
}
