package epochmodel

import (
	"fmt"

	"github.com/nvandessel/spikerecon/internal/models"
)

// EpochCounts lines up one epoch of two replica engines.
type EpochCounts struct {
	Epoch        int  `json:"epoch"`
	SpikesA      int  `json:"spikes_a"`
	SpikesB      int  `json:"spikes_b"`
	AdjustmentsA int  `json:"adjustments_a"`
	AdjustmentsB int  `json:"adjustments_b"`
	Match        bool `json:"match"`
}

// Divergence locates the first difference between two replicas. Indices are
// 1-based; Spike and Adjustment are 0 when the difference is at a coarser
// level.
type Divergence struct {
	Epoch      int    `json:"epoch"`
	Spike      int    `json:"spike,omitempty"`
	Adjustment int    `json:"adjustment,omitempty"`
	Reason     string `json:"reason"`
}

func (d *Divergence) String() string {
	loc := fmt.Sprintf("epoch %d", d.Epoch)
	if d.Spike > 0 {
		loc += fmt.Sprintf(" spike %d", d.Spike)
	}
	if d.Adjustment > 0 {
		loc += fmt.Sprintf(" adjustment %d", d.Adjustment)
	}
	return loc + ": " + d.Reason
}

// Comparison is the result of Compare.
type Comparison struct {
	EpochsA    int           `json:"epochs_a"`
	EpochsB    int           `json:"epochs_b"`
	Epochs     []EpochCounts `json:"epochs"`
	Divergence *Divergence   `json:"divergence,omitempty"`
}

// Identical reports whether no divergence was found.
func (c *Comparison) Identical() bool {
	return c.Divergence == nil
}

// Compare walks two engines' epochs side by side. Spikes are matched by
// position, neuron and tick relative to the epoch's trigger, since replicas
// run on independent clocks. Adjustments must match exactly and in order.
func Compare(a, b []*models.Epoch) *Comparison {
	c := &Comparison{EpochsA: len(a), EpochsB: len(b)}

	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		counts := EpochCounts{Epoch: i + 1}
		var ea, eb *models.Epoch
		if i < len(a) {
			ea = a[i]
			counts.SpikesA, counts.AdjustmentsA = len(ea.Spikes), ea.AdjustmentCount()
		}
		if i < len(b) {
			eb = b[i]
			counts.SpikesB, counts.AdjustmentsB = len(eb.Spikes), eb.AdjustmentCount()
		}

		d := compareEpoch(i+1, ea, eb)
		counts.Match = d == nil
		if d != nil && c.Divergence == nil {
			c.Divergence = d
		}
		c.Epochs = append(c.Epochs, counts)
	}
	return c
}

func compareEpoch(n int, a, b *models.Epoch) *Divergence {
	switch {
	case a == nil:
		return &Divergence{Epoch: n, Reason: "missing from engine A"}
	case b == nil:
		return &Divergence{Epoch: n, Reason: "missing from engine B"}
	}

	ta, tb := a.Trigger(), b.Trigger()
	for i := 0; i < min(len(a.Spikes), len(b.Spikes)); i++ {
		sa, sb := a.Spikes[i], b.Spikes[i]
		switch {
		case sa.Neuron != sb.Neuron:
			return &Divergence{Epoch: n, Spike: i + 1,
				Reason: fmt.Sprintf("neuron %d vs %d", sa.Neuron, sb.Neuron)}
		case sa.Tick-ta.Tick != sb.Tick-tb.Tick:
			return &Divergence{Epoch: n, Spike: i + 1,
				Reason: fmt.Sprintf("relative tick %d vs %d", sa.Tick-ta.Tick, sb.Tick-tb.Tick)}
		}
		if d := compareAdjustments(sa.Adjustments, sb.Adjustments); d != nil {
			d.Epoch, d.Spike = n, i+1
			return d
		}
	}
	if len(a.Spikes) != len(b.Spikes) {
		return &Divergence{Epoch: n, Reason: fmt.Sprintf("%d spikes vs %d", len(a.Spikes), len(b.Spikes))}
	}
	return nil
}

func compareAdjustments(a, b []models.Adjustment) *Divergence {
	for i := 0; i < min(len(a), len(b)); i++ {
		if a[i] != b[i] {
			return &Divergence{Adjustment: i + 1,
				Reason: fmt.Sprintf("neuron/synapse %d/%d strength %d vs %d/%d strength %d",
					a[i].Neuron, a[i].Synapse, a[i].Strength, b[i].Neuron, b[i].Synapse, b[i].Strength)}
		}
	}
	if len(a) != len(b) {
		return &Divergence{Reason: fmt.Sprintf("%d adjustments vs %d", len(a), len(b))}
	}
	return nil
}
