package record

import (
	"fmt"

	"github.com/nvandessel/spikerecon/internal/models"
	"github.com/nvandessel/spikerecon/internal/pathutil"
)

// Sources is the ordered set of engine logs taking part in one run.
type Sources struct {
	list []*Source
}

// NewSources groups already-opened sources in binding order and applies the
// chained synchronization.
func NewSources(list ...*Source) *Sources {
	for i, s := range list {
		s.position = i
	}
	s := &Sources{list: list}
	s.Synchronize()
	return s
}

// OpenAll opens root/<engine>/<recordFile> for every binding, in order, and
// synchronizes them. If any engine fails to open, the engines already opened
// are closed before the error is returned.
func OpenAll(root, recordFile string, bindings []models.EngineBinding) (_ *Sources, retErr error) {
	opened := make([]*Source, 0, len(bindings))
	defer func() {
		if retErr != nil {
			for _, s := range opened {
				s.Close()
			}
		}
	}()

	for _, b := range bindings {
		path, err := pathutil.EngineRecordPath(root, b.Engine, recordFile)
		if err != nil {
			return nil, fmt.Errorf("resolving record for engine %s: %w", b.Engine, err)
		}
		src, err := Open(path, b)
		if err != nil {
			return nil, err
		}
		opened = append(opened, src)
	}

	return NewSources(opened...), nil
}

// With opens every engine log, calls fn, and closes the logs on every exit path.
func With(root, recordFile string, bindings []models.EngineBinding, fn func(*Sources) error) error {
	sources, err := OpenAll(root, recordFile, bindings)
	if err != nil {
		return err
	}
	defer sources.Close()
	return fn(sources)
}

// Synchronize applies the chained alignment in binding order: the first
// source keeps its own ticks and each following source is shifted so its
// first event lands on the previous source's adjusted first tick.
func (s *Sources) Synchronize() {
	var target int64
	for _, src := range s.list {
		target = src.Synchronize(target)
	}
}

// List returns the sources in binding order.
func (s *Sources) List() []*Source {
	return s.list
}

// Bindings returns the synchronized bindings in order.
func (s *Sources) Bindings() []models.EngineBinding {
	out := make([]models.EngineBinding, len(s.list))
	for i, src := range s.list {
		out[i] = src.Binding()
	}
	return out
}

// Close releases every source. Closing a source cannot fail, so neither
// can this; it returns an error to satisfy io.Closer.
func (s *Sources) Close() error {
	for _, src := range s.list {
		src.Close()
	}
	return nil
}
