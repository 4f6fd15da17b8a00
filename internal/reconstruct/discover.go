package reconstruct

import (
	"github.com/nvandessel/spikerecon/internal/merge"
	"github.com/nvandessel/spikerecon/internal/models"
)

// DiscoverChannels consumes the merged stream once and returns a channel for
// every distinct global neuron index seen, in order of first appearance.
// Names come from namer, or DefaultChannelName when namer is nil. The merger
// is reset before returning so the stream can be replayed.
func DiscoverChannels(m *merge.Merger, namer func(int) string) []models.Channel {
	if namer == nil {
		namer = models.DefaultChannelName
	}

	seen := make(map[int]bool)
	var channels []models.Channel
	for {
		ev, ok := m.Next()
		if !ok {
			break
		}
		if seen[ev.Neuron] {
			continue
		}
		seen[ev.Neuron] = true
		channels = append(channels, models.Channel{Name: namer(ev.Neuron), Index: ev.Neuron})
	}

	m.Reset()
	return channels
}

// NamesFrom returns a namer that looks indices up in names and falls back
// to DefaultChannelName.
func NamesFrom(names map[int]string) func(int) string {
	return func(index int) string {
		if name, ok := names[index]; ok && name != "" {
			return name
		}
		return models.DefaultChannelName(index)
	}
}
