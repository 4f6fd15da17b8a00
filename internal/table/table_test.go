package table

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/spikerecon/internal/models"
)

func TestNewHeader(t *testing.T) {
	got := NewHeader([]models.Channel{{Name: "Input1", Index: 3}, {Name: "Neuron12", Index: 12}})
	want := []string{"time", "Input1(3)", "Neuron12(12)"}
	if len(got) != len(want) {
		t.Fatalf("NewHeader() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := NewHeader(nil); len(got) != 1 || got[0] != "time" {
		t.Errorf("NewHeader(nil) = %v, want [time]", got)
	}
}

func TestWriteCSV(t *testing.T) {
	tbl := &Table{
		Header: []string{"time", "Input1(3)", "Neuron12(12)"},
		Rows:   [][]int64{{0, 0, 0}, {100, 90, 0}, {101, 90, -4}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, tbl); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}

	want := "time,Input1(3),Neuron12(12)\n0,0,0\n100,90,0\n101,90,-4\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteCSV_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, &Table{Header: []string{"time"}}); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}
	if buf.String() != "time\n" {
		t.Errorf("WriteCSV() = %q, want %q", buf.String(), "time\n")
	}
}

func TestWriteCSV_RowWidthMismatch(t *testing.T) {
	tbl := &Table{Header: []string{"time", "a(1)"}, Rows: [][]int64{{1}}}
	if err := WriteCSV(&bytes.Buffer{}, tbl); err == nil {
		t.Error("WriteCSV() should reject rows narrower than the header")
	}
}

func TestTable_Column(t *testing.T) {
	tbl := &Table{
		Header: []string{"time", "a(1)"},
		Rows:   [][]int64{{1, 5}, {2, 6}},
	}
	vals, ok := tbl.Column("a(1)")
	if !ok || len(vals) != 2 || vals[0] != 5 || vals[1] != 6 {
		t.Errorf("Column(a(1)) = %v, %v", vals, ok)
	}
	if _, ok := tbl.Column("b(2)"); ok {
		t.Error("Column(b(2)) should not exist")
	}
	if ticks := tbl.Ticks(); ticks[0] != 1 || ticks[1] != 2 {
		t.Errorf("Ticks() = %v", ticks)
	}
}

func TestNextEpochNumber(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  int
	}{
		{"empty directory", nil, 1},
		{"sequential", []string{"epoch1.csv", "epoch2.csv"}, 3},
		{"gaps use the largest", []string{"epoch1.csv", "epoch7.csv", "epoch3.csv"}, 8},
		{"numeric not lexical", []string{"epoch9.csv", "epoch10.csv"}, 11},
		{"unrelated files ignored", []string{"CleanRecord.csv", "epochs.csv", "epoch2.png", "notes.txt"}, 1},
		{"suffix after number", []string{"epoch4-old.csv"}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, f), []byte("time\n"), 0644); err != nil {
					t.Fatalf("writing %s: %v", f, err)
				}
			}
			got, err := NextEpochNumber(dir)
			if err != nil {
				t.Fatalf("NextEpochNumber() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NextEpochNumber() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNextEpochNumber_MissingDir(t *testing.T) {
	got, err := NextEpochNumber(filepath.Join(t.TempDir(), "missing"))
	if err != nil || got != 1 {
		t.Errorf("NextEpochNumber(missing) = %d, %v; want 1, nil", got, err)
	}
}

func TestDirSink(t *testing.T) {
	dir := t.TempDir()
	sink := &DirSink{Dir: dir, RunFile: "CleanRecord.csv"}
	tbl := &Table{Header: []string{"time"}, Rows: [][]int64{{1}}}

	for want := 1; want <= 3; want++ {
		path, err := sink.WriteEpoch(tbl)
		if err != nil {
			t.Fatalf("WriteEpoch() error: %v", err)
		}
		if filepath.Base(path) != EpochFileName(want) {
			t.Errorf("epoch path = %s, want %s", filepath.Base(path), EpochFileName(want))
		}
	}

	// A second sink over the same directory continues the numbering.
	again := &DirSink{Dir: dir, RunFile: "CleanRecord.csv"}
	path, err := again.WriteEpoch(tbl)
	if err != nil {
		t.Fatalf("WriteEpoch() error: %v", err)
	}
	if filepath.Base(path) != "epoch4.csv" {
		t.Errorf("continued epoch = %s, want epoch4.csv", filepath.Base(path))
	}

	runPath, err := sink.WriteRun(tbl)
	if err != nil {
		t.Fatalf("WriteRun() error: %v", err)
	}
	data, err := os.ReadFile(runPath)
	if err != nil {
		t.Fatalf("reading run file: %v", err)
	}
	if string(data) != "time\n1\n" {
		t.Errorf("run file = %q", data)
	}

	epochs, err := ListEpochs(dir)
	if err != nil {
		t.Fatalf("ListEpochs() error: %v", err)
	}
	if len(epochs) != 4 || epochs[0].Number != 1 || epochs[3].Number != 4 {
		t.Errorf("ListEpochs() = %+v", epochs)
	}
}

func TestDirSink_NoDestination(t *testing.T) {
	tbl := &Table{Header: []string{"time"}}

	if _, err := (&DirSink{}).WriteEpoch(tbl); !errors.Is(err, ErrNoDestination) {
		t.Errorf("WriteEpoch() error = %v, want ErrNoDestination", err)
	}
	if _, err := (&DirSink{Dir: t.TempDir()}).WriteRun(tbl); !errors.Is(err, ErrNoDestination) {
		t.Errorf("WriteRun() error = %v, want ErrNoDestination", err)
	}
}
