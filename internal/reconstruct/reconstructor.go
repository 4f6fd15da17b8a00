// Package reconstruct turns the merged event stream into a dense activation
// table for the whole run and a series of trigger-bounded epoch tables.
//
// Every monitored channel holds its last value until its next event (a
// zero-order hold), so the run table has one row per integer tick between
// the first and last emitted tick.
package reconstruct

import (
	"context"
	"log/slog"

	"github.com/nvandessel/spikerecon/internal/logging"
	"github.com/nvandessel/spikerecon/internal/merge"
	"github.com/nvandessel/spikerecon/internal/models"
	"github.com/nvandessel/spikerecon/internal/table"
)

// Sink receives finished tables and returns where each one went.
type Sink interface {
	WriteEpoch(t *table.Table) (string, error)
	WriteRun(t *table.Table) (string, error)
}

// Config selects the monitored channels and the epoch trigger.
type Config struct {
	// Channels lists the monitored neurons in column order. When empty the
	// channels are discovered from the stream.
	Channels []models.Channel

	// Trigger opens a new epoch. Nil never fires.
	Trigger Trigger

	// Namer names discovered channels. Nil uses DefaultChannelName.
	Namer func(int) string
}

// Result describes one reconstruction.
type Result struct {
	Channels []models.Channel

	// Run is the full-run table: header, zero anchor at tick 0, then one
	// row per tick.
	Run *table.Table

	// Epochs are the flushed epoch tables in order, renumbered from 1.
	Epochs []*table.Table

	// EpochPaths and RunPath are what the sink reported. They stay empty
	// once a write has failed.
	EpochPaths []string
	RunPath    string

	Events    int
	Triggers  int
	Discarded int
}

// DataRows returns the run rows after the anchor.
func (r *Result) DataRows() [][]int64 {
	if r.Run == nil || len(r.Run.Rows) == 0 {
		return nil
	}
	return r.Run.Rows[1:]
}

// Reconstructor runs the single forward pass over a merged stream.
type Reconstructor struct {
	config    Config
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// New creates a Reconstructor.
func New(config Config) *Reconstructor {
	if config.Trigger == nil {
		config.Trigger = Never
	}
	return &Reconstructor{config: config, logger: logging.Discard()}
}

// SetLogger sets the operational logger and the decision trace.
func (r *Reconstructor) SetLogger(logger *slog.Logger, decisions *logging.DecisionLogger) {
	if logger != nil {
		r.logger = logger
	}
	r.decisions = decisions
}

// Run consumes m to the end and hands every non-empty epoch, then the run
// table, to sink.
//
// A failing write stops further writes but not the pass: the Result is
// complete and returned together with the first write error.
func (r *Reconstructor) Run(m *merge.Merger, sink Sink) (*Result, error) {
	channels := r.config.Channels
	if len(channels) == 0 {
		channels = DiscoverChannels(m, r.config.Namer)
		r.logger.Debug("discovered channels", "count", len(channels))
		r.decisions.Log(map[string]any{
			"event":    "channels_discovered",
			"channels": channels,
		})
	}

	p := newPass(r, channels, sink)
	for {
		ev, ok := m.Next()
		if !ok {
			break
		}
		p.result.Events++

		if r.config.Trigger(ev) {
			p.trigger(ev)
		}
		if !ev.Kind.DrivesChannel() {
			continue
		}
		if cols, ok := p.columns[ev.Neuron]; ok {
			p.apply(ev.Tick, cols, ev.Activation)
		}
	}

	p.flushEpoch()
	p.writeRun()

	r.logger.Info("reconstruction finished",
		"events", p.result.Events,
		"rows", len(p.result.DataRows()),
		"epochs", len(p.result.Epochs),
		"discarded", p.result.Discarded)
	return p.result, p.writeErr
}

// pass is the mutable state of one Run.
type pass struct {
	r      *Reconstructor
	sink   Sink
	header []string

	// columns maps a global neuron index to its value positions in row.
	columns map[int][]int
	row     []int64
	last    int64
	emitted bool

	// epoch holds the anchor followed by rows carrying their run ticks.
	epoch    [][]int64
	result   *Result
	writeErr error
}

func newPass(r *Reconstructor, channels []models.Channel, sink Sink) *pass {
	p := &pass{
		r:       r,
		sink:    sink,
		header:  table.NewHeader(channels),
		columns: make(map[int][]int, len(channels)),
		row:     make([]int64, len(channels)),
		result:  &Result{Channels: channels},
	}
	for i, c := range channels {
		p.columns[c.Index] = append(p.columns[c.Index], i)
	}

	p.result.Run = &table.Table{Header: p.header}
	if len(channels) > 0 {
		p.result.Run.Rows = append(p.result.Run.Rows, p.anchor())
	}
	p.epoch = [][]int64{p.anchor()}
	return p
}

func (p *pass) anchor() []int64 {
	return make([]int64, len(p.header))
}

func (p *pass) snapshot(tick int64) []int64 {
	out := make([]int64, 0, len(p.header))
	out = append(out, tick)
	return append(out, p.row...)
}

// emit appends the current row at tick to both accumulators.
func (p *pass) emit(tick int64) {
	p.result.Run.Rows = append(p.result.Run.Rows, p.snapshot(tick))
	p.epoch = append(p.epoch, p.snapshot(tick))
	p.last = tick
	p.emitted = true
}

// hold emits the unchanged row for every tick strictly between the last
// emitted tick and until.
func (p *pass) hold(until int64) {
	if !p.emitted || until <= p.last+1 {
		return
	}
	p.r.logger.Log(context.Background(), logging.LevelTrace, "holding row",
		"from", p.last+1, "to", until-1)
	for t := p.last + 1; t < until; t++ {
		p.emit(t)
	}
}

func (p *pass) apply(tick int64, cols []int, value int64) {
	if p.emitted && tick <= p.last {
		for _, c := range cols {
			p.row[c] = value
		}
		p.overwrite()
		return
	}

	p.hold(tick)
	for _, c := range cols {
		p.row[c] = value
	}
	p.emit(tick)
}

// overwrite replaces the row already emitted for the last tick. If the
// epoch opened at that tick it gets the row appended instead.
func (p *pass) overwrite() {
	runRows := p.result.Run.Rows
	runRows[len(runRows)-1] = p.snapshot(p.last)

	if n := len(p.epoch); n > 1 && p.epoch[n-1][0] == p.last {
		p.epoch[n-1] = p.snapshot(p.last)
		return
	}
	p.epoch = append(p.epoch, p.snapshot(p.last))
}

func (p *pass) trigger(ev models.SynchronizedEvent) {
	p.result.Triggers++
	p.r.logger.Debug("epoch trigger", "tick", ev.Tick, "engine", ev.Engine, "neuron", ev.Neuron)
	p.r.decisions.Log(map[string]any{
		"event":  "trigger",
		"tick":   ev.Tick,
		"engine": ev.Engine,
		"neuron": ev.Neuron,
		"kind":   ev.Kind.String(),
	})

	p.hold(ev.Tick)

	// A row already emitted for the trigger tick opens the new epoch.
	var carried []int64
	if n := len(p.epoch); p.emitted && n > 1 && p.epoch[n-1][0] == ev.Tick {
		carried = p.epoch[n-1]
		p.epoch = p.epoch[:n-1]
	}

	p.flushEpoch()
	p.epoch = [][]int64{p.anchor()}
	if carried != nil {
		p.epoch = append(p.epoch, carried)
	}
}

// flushEpoch writes the epoch accumulator if it holds anything beyond the
// anchor, with ticks renumbered 1..N.
func (p *pass) flushEpoch() {
	if len(p.epoch) <= 1 {
		p.result.Discarded++
		p.r.decisions.Log(map[string]any{"event": "epoch_discarded"})
		return
	}

	first := p.epoch[1][0]
	for i, row := range p.epoch {
		row[0] = int64(i + 1)
	}
	t := &table.Table{Header: p.header, Rows: p.epoch}
	p.epoch = nil
	p.result.Epochs = append(p.result.Epochs, t)

	path := p.write("epoch", t)
	if path != "" {
		p.result.EpochPaths = append(p.result.EpochPaths, path)
	}
	p.r.decisions.Log(map[string]any{
		"event":      "epoch_written",
		"epoch":      len(p.result.Epochs),
		"first_tick": first,
		"rows":       len(t.Rows),
		"path":       path,
	})
}

func (p *pass) writeRun() {
	p.result.RunPath = p.write("run", p.result.Run)
}

func (p *pass) write(what string, t *table.Table) string {
	if p.writeErr != nil || p.sink == nil {
		return ""
	}
	var path string
	var err error
	if what == "epoch" {
		path, err = p.sink.WriteEpoch(t)
	} else {
		path, err = p.sink.WriteRun(t)
	}
	if err != nil {
		p.writeErr = err
		p.r.logger.Warn("output not written", "table", what, "error", err)
		return ""
	}
	p.r.logger.Debug("table written", "table", what, "rows", len(t.Rows), "path", path)
	return path
}
