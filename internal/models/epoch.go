package models

import "time"

// Adjustment is a synaptic-weight change recorded after a spike.
type Adjustment struct {
	Neuron   int   `json:"neuron"`
	Synapse  int   `json:"synapse"`
	Strength int64 `json:"strength"`
}

// SpikeEvent is a spike together with the adjustments that followed it
// in the engine's log.
type SpikeEvent struct {
	Tick        int64        `json:"tick"`
	Time        time.Time    `json:"time"`
	Neuron      int          `json:"neuron"`
	Kind        EventKind    `json:"kind"`
	Adjustments []Adjustment `json:"adjustments"`
}

// Epoch is the run of spikes between two trigger spikes.
type Epoch struct {
	Spikes []*SpikeEvent `json:"spikes"`
}

// AdjustmentCount returns the total number of adjustments in the epoch.
func (e *Epoch) AdjustmentCount() int {
	n := 0
	for _, s := range e.Spikes {
		n += len(s.Adjustments)
	}
	return n
}

// Trigger returns the spike that opened the epoch, or nil if it is empty.
func (e *Epoch) Trigger() *SpikeEvent {
	if len(e.Spikes) == 0 {
		return nil
	}
	return e.Spikes[0]
}
