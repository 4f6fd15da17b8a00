package reconstruct

import "github.com/nvandessel/spikerecon/internal/models"

// Trigger decides whether an event closes the current epoch and opens a new
// one. It sees events in global neuron space.
type Trigger func(models.SynchronizedEvent) bool

// SpikeOn triggers on a spike of the given global neuron.
func SpikeOn(neuron int) Trigger {
	return KindOn(models.KindSpike, neuron)
}

// KindOn triggers on events of kind logged for the given global neuron.
func KindOn(kind models.EventKind, neuron int) Trigger {
	return func(ev models.SynchronizedEvent) bool {
		return ev.Kind == kind && ev.Neuron == neuron
	}
}

// Never is a trigger that never fires; the whole run is one epoch.
func Never(models.SynchronizedEvent) bool { return false }
