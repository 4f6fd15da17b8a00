// Package table holds reconstructed activation tables and writes them as CSV.
//
// Tables are converted to Arrow records and written with the Arrow CSV
// writer: one header line, one line per tick, no quoting of plain labels.
package table

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/nvandessel/spikerecon/internal/models"
)

// TimeColumn heads the tick column of every table.
const TimeColumn = "time"

// Table is a header plus rows of [tick, channel values...].
type Table struct {
	Header []string
	Rows   [][]int64
}

// NewHeader builds ["time", "<name>(<index>)", ...] for channels.
func NewHeader(channels []models.Channel) []string {
	header := make([]string, 0, len(channels)+1)
	header = append(header, TimeColumn)
	for _, c := range channels {
		header = append(header, c.Label())
	}
	return header
}

// Ticks returns the tick column.
func (t *Table) Ticks() []int64 {
	ticks := make([]int64, len(t.Rows))
	for i, row := range t.Rows {
		ticks[i] = row[0]
	}
	return ticks
}

// Column returns the values of the named column and whether it exists.
func (t *Table) Column(label string) ([]int64, bool) {
	col := -1
	for i, h := range t.Header {
		if h == label {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, false
	}
	values := make([]int64, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[col]
	}
	return values, true
}

// Schema returns an all-int64 Arrow schema named after the header.
func (t *Table) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(t.Header))
	for i, name := range t.Header {
		fields[i] = arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64}
	}
	return arrow.NewSchema(fields, nil)
}

// Record converts the table to an Arrow record. The caller must Release it.
func (t *Table) Record(mem memory.Allocator) (arrow.Record, error) {
	b := array.NewRecordBuilder(mem, t.Schema())
	defer b.Release()

	for r, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, fmt.Errorf("row %d has %d values, header has %d columns", r, len(row), len(t.Header))
		}
		for i, v := range row {
			b.Field(i).(*array.Int64Builder).Append(v)
		}
	}
	return b.NewRecord(), nil
}

// WriteCSV writes the table, header first, to w.
func WriteCSV(w io.Writer, t *Table) error {
	rec, err := t.Record(memory.NewGoAllocator())
	if err != nil {
		return fmt.Errorf("building record: %w", err)
	}
	defer rec.Release()

	cw := csv.NewWriter(w, rec.Schema(), csv.WithHeader(true))
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return cw.Error()
}
