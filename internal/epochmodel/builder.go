// Package epochmodel groups one engine's spikes into trigger-bounded epochs
// and attaches each synaptic adjustment to the spike it follows.
//
// It reads a single engine log, never the merged stream, so replica engines
// running the same protocol can be compared epoch by epoch.
package epochmodel

import (
	"time"

	"github.com/nvandessel/spikerecon/internal/models"
)

// Stream is a forward cursor over one engine's events.
type Stream interface {
	Current() (models.SynchronizedEvent, bool)
	Advance()
}

// Builder holds the association state while the stream is read. The zero
// value is not usable; call NewBuilder.
type Builder struct {
	trigger int
	epochs  []*models.Epoch
	current *models.Epoch
	active  *models.SpikeEvent
	dropped int
}

// NewBuilder creates a builder whose epochs start at spikes of triggerNeuron.
func NewBuilder(triggerNeuron int) *Builder {
	return &Builder{trigger: triggerNeuron}
}

// Add feeds one event.
//
// A spike on the trigger neuron opens a new epoch and becomes the active
// spike. Any other spike joins the current epoch and becomes the active
// spike; before the first trigger there is no epoch and it is ignored. An
// adjustment attaches to the active spike, or is dropped when there is none.
// Other kinds are ignored.
func (b *Builder) Add(ev models.SynchronizedEvent) {
	switch ev.Kind {
	case models.KindSpike:
		if ev.Neuron == b.trigger {
			b.current = &models.Epoch{}
			b.epochs = append(b.epochs, b.current)
		}
		if b.current == nil {
			return
		}
		b.active = &models.SpikeEvent{Tick: ev.Tick, Time: ev.Time, Neuron: ev.Neuron, Kind: ev.Kind}
		b.current.Spikes = append(b.current.Spikes, b.active)

	case models.KindSynapseAdjust:
		if b.active == nil || ev.SynapseIndex == nil || ev.SynapseStrength == nil {
			b.dropped++
			return
		}
		b.active.Adjustments = append(b.active.Adjustments, models.Adjustment{
			Neuron:   ev.Neuron,
			Synapse:  *ev.SynapseIndex,
			Strength: *ev.SynapseStrength,
		})
	}
}

// Epochs returns the epochs built so far.
func (b *Builder) Epochs() []*models.Epoch {
	return b.epochs
}

// Dropped counts adjustments that had no spike to attach to.
func (b *Builder) Dropped() int {
	return b.dropped
}

// Build reads s to the end and returns its epochs.
func Build(s Stream, triggerNeuron int) []*models.Epoch {
	b := NewBuilder(triggerNeuron)
	for ev, ok := s.Current(); ok; ev, ok = s.Current() {
		b.Add(ev)
		s.Advance()
	}
	return b.Epochs()
}

// EngineAnalysis is the epoch model of one engine plus its timing.
type EngineAnalysis struct {
	Engine        string          `json:"engine"`
	TriggerNeuron int             `json:"trigger_neuron"`
	Epochs        []*models.Epoch `json:"epochs"`
	Spikes        int             `json:"spikes"`
	Adjustments   int             `json:"adjustments"`
	Dropped       int             `json:"dropped_adjustments"`
	Events        int             `json:"events"`
	Timing        Timing          `json:"timing"`
}

// Timing is the wall-clock extent of an engine log.
type Timing struct {
	FirstTick  int64         `json:"first_tick"`
	LastTick   int64         `json:"last_tick"`
	FirstTime  time.Time     `json:"first_time"`
	LastTime   time.Time     `json:"last_time"`
	Duration   time.Duration `json:"duration_ns"`
	TickPeriod time.Duration `json:"tick_period_ns"`
}

// Analyze reads s to the end, building the epoch model and measuring the
// log's duration and tick period.
func Analyze(s Stream, engine string, triggerNeuron int) *EngineAnalysis {
	b := NewBuilder(triggerNeuron)
	a := &EngineAnalysis{Engine: engine, TriggerNeuron: triggerNeuron}

	for ev, ok := s.Current(); ok; ev, ok = s.Current() {
		if a.Events == 0 {
			a.Timing.FirstTick, a.Timing.FirstTime = ev.Tick, ev.Time
		}
		a.Timing.LastTick, a.Timing.LastTime = ev.Tick, ev.Time
		a.Events++
		b.Add(ev)
		s.Advance()
	}

	a.Epochs = b.Epochs()
	a.Dropped = b.Dropped()
	for _, e := range a.Epochs {
		a.Spikes += len(e.Spikes)
		a.Adjustments += e.AdjustmentCount()
	}
	if a.Events > 0 {
		a.Timing.Duration = Elapsed(a.Timing.FirstTime, a.Timing.LastTime)
		a.Timing.TickPeriod, _ = TickPeriod(a.Timing.FirstTick, a.Timing.LastTick, a.Timing.FirstTime, a.Timing.LastTime)
	}
	return a
}
