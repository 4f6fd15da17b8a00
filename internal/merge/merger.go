// Package merge interleaves synchronized engine logs into one globally
// tick-ordered event stream.
//
// Selection is a linear scan over the sources: the source whose cursor holds
// the strictly smallest tick wins, and ties go to the source listed first.
// Fan-in is a handful of engines, so no heap is kept.
package merge

import "github.com/nvandessel/spikerecon/internal/models"

// Cursor is a forward-only, rewindable view of one synchronized event log.
type Cursor interface {
	PeekTick() (int64, bool)
	Current() (models.SynchronizedEvent, bool)
	Advance()
	Rewind()
}

// Merger performs a deterministic k-way merge of synchronized cursors.
type Merger struct {
	sources []Cursor
}

// New creates a merger over sources in binding order.
func New(sources ...Cursor) *Merger {
	return &Merger{sources: sources}
}

// Next returns the next event in global order and advances only the source
// it came from. It returns false once every source is exhausted.
func (m *Merger) Next() (models.SynchronizedEvent, bool) {
	winner := -1
	var best int64
	for i, src := range m.sources {
		tick, ok := src.PeekTick()
		if !ok {
			continue
		}
		if winner < 0 || tick < best {
			winner = i
			best = tick
		}
	}
	if winner < 0 {
		return models.SynchronizedEvent{}, false
	}

	ev, _ := m.sources[winner].Current()
	m.sources[winner].Advance()
	return ev, true
}

// Reset rewinds every source so the merged stream can be replayed from the start.
func (m *Merger) Reset() {
	for _, src := range m.sources {
		src.Rewind()
	}
}

// Drain consumes the rest of the stream and returns it.
func (m *Merger) Drain() []models.SynchronizedEvent {
	var out []models.SynchronizedEvent
	for {
		ev, ok := m.Next()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}
