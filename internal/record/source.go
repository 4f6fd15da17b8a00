// Package record reads engine event logs and exposes each one as a cursor in
// synchronized global tick and neuron space.
package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/spikerecon/internal/constants"
	"github.com/nvandessel/spikerecon/internal/models"
	"github.com/nvandessel/spikerecon/internal/pathutil"
)

var requiredColumns = []string{
	constants.ColumnTick,
	constants.ColumnTime,
	constants.ColumnEventType,
	constants.ColumnNeuronIndex,
	constants.ColumnActivation,
	constants.ColumnHypersensitive,
	constants.ColumnSynapseIndex,
	constants.ColumnSynapseStrength,
}

// Source is a cursor over one engine's event log. The log is parsed once by
// Open; afterwards only the cursor and the tick offset change.
type Source struct {
	binding  models.EngineBinding
	position int
	path     string
	events   []models.RawEvent
	current  int
}

// Open reads and parses the record at path for the given engine binding.
// A missing file yields an error wrapping ErrLogNotFound; a malformed row
// yields a *ParseError.
func Open(path string, binding models.EngineBinding) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("engine %s: %w: %s", binding.Engine, ErrLogNotFound, pathutil.RedactPath(path))
		}
		return nil, fmt.Errorf("engine %s: opening record %s: %w", binding.Engine, pathutil.RedactPath(path), err)
	}
	defer f.Close()

	events, err := Parse(f, binding.Engine, path)
	if err != nil {
		return nil, err
	}

	binding.TickOffset = 0
	return &Source{binding: binding, path: path, events: events}, nil
}

// NewSource wraps already-parsed events, e.g. events built in memory.
func NewSource(binding models.EngineBinding, events []models.RawEvent) *Source {
	binding.TickOffset = 0
	return &Source{binding: binding, events: events}
}

// Parse reads a complete record from r. engine and path are used only to
// annotate errors.
func Parse(r io.Reader, engine, path string) ([]models.RawEvent, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Engine: engine, Path: path, Err: errors.New("record has no header")}
		}
		return nil, &ParseError{Engine: engine, Path: path, Err: err}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, &ParseError{Engine: engine, Path: path, Field: name, Err: errors.New("missing column")}
		}
	}

	var events []models.RawEvent
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Engine: engine, Path: path, Row: row, Err: err}
		}

		p := rowParser{engine: engine, path: path, row: row, fields: fields, columns: columns}
		event := p.event()
		if p.err != nil {
			return nil, p.err
		}
		events = append(events, event)
	}

	return events, nil
}

// rowParser converts one CSV row, keeping the first error it meets.
type rowParser struct {
	engine  string
	path    string
	row     int
	fields  []string
	columns map[string]int
	err     error
}

func (p *rowParser) event() models.RawEvent {
	ev := models.RawEvent{Row: p.row}
	ev.Tick = p.intField(constants.ColumnTick)
	ev.Time = p.timeField(constants.ColumnTime)
	ev.Kind = p.kindField(constants.ColumnEventType)
	ev.Neuron = int(p.intField(constants.ColumnNeuronIndex))
	ev.Activation = p.intField(constants.ColumnActivation)
	ev.Hypersensitive = p.boolField(constants.ColumnHypersensitive)
	if v, ok := p.optionalIntField(constants.ColumnSynapseIndex); ok {
		idx := int(v)
		ev.SynapseIndex = &idx
	}
	if v, ok := p.optionalIntField(constants.ColumnSynapseStrength); ok {
		ev.SynapseStrength = &v
	}
	return ev
}

func (p *rowParser) value(column string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	i := p.columns[column]
	if i >= len(p.fields) {
		p.fail(column, "", errors.New("missing field"))
		return "", false
	}
	v := strings.TrimSpace(p.fields[i])
	if v == "" {
		p.fail(column, v, errors.New("empty field"))
		return "", false
	}
	return v, true
}

func (p *rowParser) fail(column, value string, err error) {
	if p.err == nil {
		p.err = &ParseError{Engine: p.engine, Path: p.path, Row: p.row, Field: column, Value: value, Err: err}
	}
}

func (p *rowParser) intField(column string) int64 {
	v, ok := p.value(column)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(column, v, err)
		return 0
	}
	return n
}

func (p *rowParser) optionalIntField(column string) (int64, bool) {
	v, ok := p.value(column)
	if !ok || v == constants.NotApplicable {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(column, v, err)
		return 0, false
	}
	return n, true
}

func (p *rowParser) boolField(column string) bool {
	v, ok := p.value(column)
	if !ok {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true":
		return true
	case "0", "false":
		return false
	}
	p.fail(column, v, errors.New("expected 0, 1, true or false"))
	return false
}

func (p *rowParser) kindField(column string) models.EventKind {
	n := p.intField(column)
	if p.err != nil {
		return 0
	}
	k := models.EventKind(n)
	if !k.Valid() {
		p.fail(column, strconv.FormatInt(n, 10), errors.New("unknown event kind"))
	}
	return k
}

func (p *rowParser) timeField(column string) time.Time {
	v, ok := p.value(column)
	if !ok {
		return time.Time{}
	}
	t, err := ParseTimestamp(v)
	if err != nil {
		p.fail(column, v, err)
	}
	return t
}

// Engine returns the engine identifier.
func (s *Source) Engine() string { return s.binding.Engine }

// Binding returns the engine binding including the computed tick offset.
func (s *Source) Binding() models.EngineBinding { return s.binding }

// Path returns the record file the source was read from, if any.
func (s *Source) Path() string { return s.path }

// Len returns the number of events in the log.
func (s *Source) Len() int { return len(s.events) }

// Synchronize aligns this source's first event with target. A target of
// zero or less leaves the source unshifted. It returns the adjusted first
// tick, which is the target for the next source in a chain, or 0 for an
// empty source.
func (s *Source) Synchronize(target int64) int64 {
	if target <= 0 || len(s.events) == 0 {
		s.binding.TickOffset = 0
	} else {
		s.binding.TickOffset = target - s.events[0].Tick
	}

	if len(s.events) == 0 {
		return 0
	}
	return s.events[0].Tick + s.binding.TickOffset
}

// AtEnd reports whether the cursor has passed the last event.
func (s *Source) AtEnd() bool {
	return s.current >= len(s.events)
}

// PeekTick returns the adjusted tick at the cursor.
func (s *Source) PeekTick() (int64, bool) {
	if s.AtEnd() {
		return 0, false
	}
	return s.events[s.current].Tick + s.binding.TickOffset, true
}

// Current returns the synchronized event at the cursor.
func (s *Source) Current() (models.SynchronizedEvent, bool) {
	if s.AtEnd() {
		return models.SynchronizedEvent{}, false
	}
	return models.Translate(s.events[s.current], s.binding, s.position), true
}

// Advance moves the cursor forward one event. It is a no-op at the end.
func (s *Source) Advance() {
	if !s.AtEnd() {
		s.current++
	}
}

// Rewind moves the cursor back to the first event without re-reading the log.
func (s *Source) Rewind() {
	s.current = 0
}

// FirstTime and LastTime return the wall-clock stamps of the first and last
// events, or the zero time for an empty source.
func (s *Source) FirstTime() time.Time {
	if len(s.events) == 0 {
		return time.Time{}
	}
	return s.events[0].Time
}

func (s *Source) LastTime() time.Time {
	if len(s.events) == 0 {
		return time.Time{}
	}
	return s.events[len(s.events)-1].Time
}

// TickSpan returns the raw first and last ticks of the log.
func (s *Source) TickSpan() (first, last int64, ok bool) {
	if len(s.events) == 0 {
		return 0, 0, false
	}
	return s.events[0].Tick, s.events[len(s.events)-1].Tick, true
}

// Close releases the parsed events. The record file is read in full and
// closed by Open, so Close holds no handle and always returns nil; it is safe
// to call more than once. The source is at end afterwards.
func (s *Source) Close() error {
	s.events = nil
	s.current = 0
	return nil
}
