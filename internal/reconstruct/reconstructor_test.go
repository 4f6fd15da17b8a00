package reconstruct

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nvandessel/spikerecon/internal/logging"
	"github.com/nvandessel/spikerecon/internal/merge"
	"github.com/nvandessel/spikerecon/internal/models"
	"github.com/nvandessel/spikerecon/internal/record"
	"github.com/nvandessel/spikerecon/internal/table"
)

func ev(tick int64, kind models.EventKind, neuron int, activation int64) models.RawEvent {
	return models.RawEvent{Tick: tick, Kind: kind, Neuron: neuron, Activation: activation}
}

// mergerOf binds each event list to an engine with a 10-neuron slice of the
// index space, synchronizes them in order and merges them.
func mergerOf(t *testing.T, engines ...[]models.RawEvent) *merge.Merger {
	t.Helper()
	list := make([]*record.Source, len(engines))
	for i, events := range engines {
		b := models.EngineBinding{Engine: string(rune('A' + i)), IndexOffset: 10 * i, NeuronCount: 10}
		list[i] = record.NewSource(b, events)
	}
	record.NewSources(list...)

	cursors := make([]merge.Cursor, len(list))
	for i, s := range list {
		cursors[i] = s
	}
	return merge.New(cursors...)
}

func assertDense(t *testing.T, rows [][]int64, from int64) {
	t.Helper()
	for i, row := range rows {
		if want := from + int64(i); row[0] != want {
			t.Fatalf("row %d has tick %d, want %d", i, row[0], want)
		}
	}
}

func TestRun_DensityAndForwardHold(t *testing.T) {
	m := mergerOf(t, []models.RawEvent{
		ev(10, models.KindSpike, 1, 7),
		ev(15, models.KindRefractory, 2, 4),
		ev(20, models.KindDecay, 1, 3),
	})
	channels := []models.Channel{{Name: "C", Index: 1}, {Name: "D", Index: 2}}

	sink := &table.MemorySink{}
	res, err := New(Config{Channels: channels}).Run(m, sink)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if got := res.Run.Rows[0]; got[0] != 0 || got[1] != 0 || got[2] != 0 {
		t.Errorf("anchor row = %v, want all zero", got)
	}

	rows := res.DataRows()
	if len(rows) != 11 {
		t.Fatalf("got %d data rows, want 11 (ticks 10..20)", len(rows))
	}
	assertDense(t, rows, 10)

	for _, row := range rows {
		tick := row[0]
		switch {
		case tick < 20 && row[1] != 7:
			t.Errorf("C at tick %d = %d, want held 7", tick, row[1])
		case tick == 20 && row[1] != 3:
			t.Errorf("C at tick 20 = %d, want 3", row[1])
		}
		if tick < 15 && row[2] != 0 {
			t.Errorf("D at tick %d = %d, want 0 before its first event", tick, row[2])
		}
		if tick >= 15 && row[2] != 4 {
			t.Errorf("D at tick %d = %d, want 4", tick, row[2])
		}
	}

	if sink.Run != res.Run {
		t.Error("run table was not handed to the sink")
	}
}

func TestRun_IgnoresNonDrivingKindsAndUnmonitoredNeurons(t *testing.T) {
	m := mergerOf(t, []models.RawEvent{
		ev(1, models.KindSpike, 1, 5),
		ev(2, models.KindInputSignal, 1, 99),
		ev(3, models.KindHyperSensitive, 1, 98),
		ev(4, models.KindSpike, 2, 97),
		ev(5, models.KindSynapseAdjust, 1, 6),
	})

	res, err := New(Config{Channels: []models.Channel{{Name: "C", Index: 1}}}).Run(m, &table.MemorySink{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	rows := res.DataRows()
	assertDense(t, rows, 1)
	want := []int64{5, 5, 5, 5, 6}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i, row := range rows {
		if row[1] != want[i] {
			t.Errorf("tick %d value = %d, want %d", row[0], row[1], want[i])
		}
	}
}

func TestRun_SameTickKeepsOneRow(t *testing.T) {
	m := mergerOf(t, []models.RawEvent{
		ev(10, models.KindSpike, 1, 5),
		ev(10, models.KindRefractory, 1, -2),
		ev(11, models.KindDecay, 1, 1),
	})

	res, err := New(Config{Channels: []models.Channel{{Name: "C", Index: 1}}}).Run(m, &table.MemorySink{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	rows := res.DataRows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][0] != 10 || rows[0][1] != -2 {
		t.Errorf("tick 10 row = %v, want [10 -2]", rows[0])
	}
	if len(res.Epochs) != 1 || len(res.Epochs[0].Rows) != 3 {
		t.Errorf("epoch rows = %v, want anchor plus 2 rows", res.Epochs)
	}
}

func TestRun_EpochBoundaries(t *testing.T) {
	m := mergerOf(t, []models.RawEvent{
		ev(5, models.KindInputSignal, 0, 0),
		ev(5, models.KindSpike, 1, 1),
		ev(60, models.KindDecay, 1, 2),
		ev(105, models.KindInputSignal, 0, 0),
		ev(105, models.KindSpike, 1, 3),
		ev(160, models.KindDecay, 1, 4),
		ev(205, models.KindInputSignal, 0, 0),
	})

	sink := &table.MemorySink{}
	r := New(Config{
		Channels: []models.Channel{{Name: "Out", Index: 1}},
		Trigger:  KindOn(models.KindInputSignal, 0),
	})
	res, err := r.Run(m, sink)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if res.Triggers != 3 {
		t.Errorf("triggers = %d, want 3", res.Triggers)
	}
	if len(sink.Epochs) != 2 {
		t.Fatalf("wrote %d epochs, want 2", len(sink.Epochs))
	}
	if res.Discarded != 2 {
		t.Errorf("discarded = %d, want 2 (before the first trigger and after the last)", res.Discarded)
	}

	for i, e := range sink.Epochs {
		// Anchor plus ticks [5,105) or [105,205).
		if len(e.Rows) != 101 {
			t.Errorf("epoch %d has %d rows, want 101", i+1, len(e.Rows))
		}
		assertDense(t, e.Rows, 1)
		if e.Rows[0][1] != 0 {
			t.Errorf("epoch %d anchor = %v, want zero", i+1, e.Rows[0])
		}
	}

	first, second := sink.Epochs[0], sink.Epochs[1]
	if first.Rows[1][1] != 1 || first.Rows[100][1] != 2 {
		t.Errorf("epoch 1 values = %d..%d, want 1..2", first.Rows[1][1], first.Rows[100][1])
	}
	if second.Rows[1][1] != 3 || second.Rows[100][1] != 4 {
		t.Errorf("epoch 2 values = %d..%d, want 3..4", second.Rows[1][1], second.Rows[100][1])
	}

	rows := res.DataRows()
	if len(rows) != 200 {
		t.Errorf("run has %d rows, want 200 (ticks 5..204)", len(rows))
	}
	assertDense(t, rows, 5)
}

func TestRun_TriggerOnMonitoredSpike(t *testing.T) {
	m := mergerOf(t, []models.RawEvent{
		ev(3, models.KindDecay, 1, 9),
		ev(5, models.KindSpike, 1, 1),
		ev(8, models.KindSpike, 1, 2),
	})

	sink := &table.MemorySink{}
	res, err := New(Config{
		Channels: []models.Channel{{Name: "Out", Index: 1}},
		Trigger:  SpikeOn(1),
	}).Run(m, sink)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// Epochs: [3,5) before the first spike, [5,8), then [8] alone.
	if len(sink.Epochs) != 3 {
		t.Fatalf("wrote %d epochs, want 3", len(sink.Epochs))
	}
	wantRows := []int{3, 4, 2}
	for i, e := range sink.Epochs {
		if len(e.Rows) != wantRows[i] {
			t.Errorf("epoch %d has %d rows, want %d", i+1, len(e.Rows), wantRows[i])
		}
	}
	// The spike that opens an epoch is its first data row.
	if sink.Epochs[1].Rows[1][1] != 1 {
		t.Errorf("epoch 2 first value = %d, want 1", sink.Epochs[1].Rows[1][1])
	}
	if res.Discarded != 0 {
		t.Errorf("discarded = %d, want 0", res.Discarded)
	}
}

func TestRun_TriggerTickRowOpensNewEpoch(t *testing.T) {
	// Row 10 is emitted by the decay before the trigger spike at 10.
	m := mergerOf(t, []models.RawEvent{
		ev(5, models.KindSpike, 1, 1),
		ev(8, models.KindDecay, 2, 3),
		ev(10, models.KindDecay, 2, 4),
		ev(10, models.KindSpike, 1, 2),
		ev(12, models.KindDecay, 2, 5),
	})

	sink := &table.MemorySink{}
	r := New(Config{
		Channels: []models.Channel{{Name: "A", Index: 1}, {Name: "B", Index: 2}},
		Trigger:  SpikeOn(1),
	})
	res, err := r.Run(m, sink)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if res.Triggers != 2 || res.Discarded != 1 || len(sink.Epochs) != 2 {
		t.Fatalf("triggers/discarded/epochs = %d/%d/%d, want 2/1/2", res.Triggers, res.Discarded, len(sink.Epochs))
	}

	want := [][][]int64{
		// ticks 5..9
		{{1, 0, 0}, {2, 1, 0}, {3, 1, 0}, {4, 1, 0}, {5, 1, 3}, {6, 1, 3}},
		// ticks 10..12
		{{1, 0, 0}, {2, 2, 4}, {3, 2, 4}, {4, 2, 5}},
	}
	for i, e := range sink.Epochs {
		if len(e.Rows) != len(want[i]) {
			t.Fatalf("epoch %d rows = %v, want %v", i+1, e.Rows, want[i])
		}
		for j, row := range e.Rows {
			for k := range row {
				if row[k] != want[i][j][k] {
					t.Errorf("epoch %d row %d = %v, want %v", i+1, j, row, want[i][j])
					break
				}
			}
		}
	}

	rows := res.DataRows()
	epochRows := len(sink.Epochs[0].Rows) - 1 + len(sink.Epochs[1].Rows) - 1
	if len(rows) != 8 || epochRows != len(rows) {
		t.Errorf("run has %d data rows, epochs %d; want 8 each", len(rows), epochRows)
	}
	if rows[5][0] != 10 || rows[5][1] != 2 {
		t.Errorf("run row at tick 10 = %v, want A=2", rows[5])
	}
}

func TestRun_AutoDiscovery(t *testing.T) {
	m := mergerOf(t,
		[]models.RawEvent{ev(100, models.KindSpike, 3, 9)},
		[]models.RawEvent{ev(50, models.KindSpike, 2, 4), ev(51, models.KindInputSignal, 5, 1)},
	)

	sink := &table.MemorySink{}
	res, err := New(Config{Namer: NamesFrom(map[int]string{12: "Input1"})}).Run(m, sink)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []models.Channel{{Name: "Neuron3", Index: 3}, {Name: "Input1", Index: 12}, {Name: "Neuron15", Index: 15}}
	if len(res.Channels) != len(want) {
		t.Fatalf("channels = %v, want %v", res.Channels, want)
	}
	for i := range want {
		if res.Channels[i] != want[i] {
			t.Errorf("channel %d = %v, want %v", i, res.Channels[i], want[i])
		}
	}

	if got := strings.Join(sink.Run.Header, ","); got != "time,Neuron3(3),Input1(12),Neuron15(15)" {
		t.Errorf("header = %s", got)
	}

	// The replay after discovery must see the whole stream again.
	rows := res.DataRows()
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if got := rows[0]; got[0] != 100 || got[1] != 9 || got[2] != 4 || got[3] != 0 {
		t.Errorf("row = %v, want [100 9 4 0]", got)
	}
	if res.Events != 3 {
		t.Errorf("events = %d, want 3", res.Events)
	}
}

func TestRun_EmptyStreamIsHeaderOnly(t *testing.T) {
	m := mergerOf(t, nil, nil)

	sink := &table.MemorySink{}
	res, err := New(Config{}).Run(m, sink)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Channels) != 0 {
		t.Errorf("channels = %v, want none", res.Channels)
	}
	if sink.Run == nil || len(sink.Run.Header) != 1 || len(sink.Run.Rows) != 0 {
		t.Errorf("run table = %+v, want header only", sink.Run)
	}
	if len(sink.Epochs) != 0 {
		t.Errorf("wrote %d epochs, want 0", len(sink.Epochs))
	}
}

func TestRun_NoDestinationStillReturnsResult(t *testing.T) {
	m := mergerOf(t, []models.RawEvent{
		ev(1, models.KindSpike, 1, 1),
		ev(3, models.KindSpike, 1, 2),
	})

	res, err := New(Config{
		Channels: []models.Channel{{Name: "C", Index: 1}},
		Trigger:  SpikeOn(1),
	}).Run(m, &table.DirSink{})
	if !errors.Is(err, table.ErrNoDestination) {
		t.Fatalf("Run() error = %v, want ErrNoDestination", err)
	}
	if res == nil {
		t.Fatal("Run() returned no result alongside the write error")
	}
	if len(res.Epochs) != 2 || len(res.DataRows()) != 3 {
		t.Errorf("epochs = %d, rows = %d; want 2, 3", len(res.Epochs), len(res.DataRows()))
	}
	if len(res.EpochPaths) != 0 || res.RunPath != "" {
		t.Errorf("paths reported after a failed write: %v %q", res.EpochPaths, res.RunPath)
	}
}

func TestRun_WritesNumberedEpochFiles(t *testing.T) {
	dir := t.TempDir()
	sink := &table.DirSink{Dir: dir, RunFile: "CleanRecord.csv"}
	events := []models.RawEvent{
		ev(1, models.KindSpike, 1, 1),
		ev(2, models.KindSpike, 1, 2),
	}

	for run := 0; run < 2; run++ {
		r := New(Config{Channels: []models.Channel{{Name: "C", Index: 1}}, Trigger: SpikeOn(1)})
		if _, err := r.Run(mergerOf(t, events), sink); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}

	epochs, err := table.ListEpochs(dir)
	if err != nil {
		t.Fatalf("ListEpochs() error: %v", err)
	}
	if len(epochs) != 4 {
		t.Fatalf("found %d epoch files, want 4", len(epochs))
	}
	for i, e := range epochs {
		if e.Number != i+1 {
			t.Errorf("epoch file %d numbered %d", i, e.Number)
		}
	}
}

func TestRun_DecisionTrace(t *testing.T) {
	var buf bytes.Buffer
	r := New(Config{Channels: []models.Channel{{Name: "C", Index: 1}}, Trigger: SpikeOn(1)})
	r.SetLogger(nil, logging.NewDecisionWriter(&buf))

	m := mergerOf(t, []models.RawEvent{ev(1, models.KindSpike, 1, 1)})
	if _, err := r.Run(m, &table.MemorySink{}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	out := buf.String()
	for _, event := range []string{`"event":"trigger"`, `"event":"epoch_discarded"`, `"event":"epoch_written"`} {
		if !strings.Contains(out, event) {
			t.Errorf("decision trace missing %s:\n%s", event, out)
		}
	}
}

func TestRun_EndToEndTwoEngines(t *testing.T) {
	m := mergerOf(t,
		[]models.RawEvent{ev(100, models.KindSpike, 3, 9)},
		[]models.RawEvent{ev(50, models.KindSpike, 2, 4)},
	)
	channels := []models.Channel{{Name: "A3", Index: 3}, {Name: "B2", Index: 12}}

	res, err := New(Config{Channels: channels}).Run(m, &table.MemorySink{})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	rows := res.DataRows()
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if got := rows[0]; got[0] != 100 || got[1] != 9 || got[2] != 4 {
		t.Errorf("row = %v, want [100 9 4]", got)
	}
}
