// Package deployment reads the deployment map that places each engine in
// the global neuron-index space.
//
// The map is a JSON array written next to the engine record directories:
//
//	[{"engine": "Research1", "offset": 0, "count": 4000}, ...]
//
// Offsets and counts may be numbers or numeric strings.
package deployment

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/nvandessel/spikerecon/internal/models"
	"github.com/nvandessel/spikerecon/internal/pathutil"
)

// ErrMapNotFound is returned when the deployment map file does not exist.
var ErrMapNotFound = errors.New("deployment map not found")

// number accepts 12 or "12".
type number int

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("expected an integer, got %s", data)
	}
	*n = number(v)
	return nil
}

type entry struct {
	Engine string `json:"engine"`
	Offset number `json:"offset"`
	Count  number `json:"count"`
}

// Load reads the deployment map at path.
func Load(path string) ([]models.EngineBinding, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMapNotFound, pathutil.RedactPath(path))
		}
		return nil, fmt.Errorf("opening deployment map: %w", err)
	}
	defer f.Close()

	bindings, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pathutil.RedactPath(path), err)
	}
	return bindings, nil
}

// Parse decodes a deployment map, keeping its order.
func Parse(r io.Reader) ([]models.EngineBinding, error) {
	var entries []entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("parsing deployment map: %w", err)
	}

	bindings := make([]models.EngineBinding, len(entries))
	for i, e := range entries {
		bindings[i] = models.EngineBinding{
			Engine:      strings.TrimSpace(e.Engine),
			IndexOffset: int(e.Offset),
			NeuronCount: int(e.Count),
		}
	}
	return bindings, nil
}

// Validate checks that every engine is named once and that the index ranges
// are non-negative, non-overlapping and contiguous from the smallest offset.
// Reconstruction does not depend on it; callers report the result.
func Validate(bindings []models.EngineBinding) error {
	var errs []error
	seen := make(map[string]bool, len(bindings))
	for i, b := range bindings {
		switch {
		case b.Engine == "":
			errs = append(errs, fmt.Errorf("entry %d: empty engine name", i))
		case seen[b.Engine]:
			errs = append(errs, fmt.Errorf("entry %d: engine %s listed twice", i, b.Engine))
		}
		seen[b.Engine] = true
		if b.IndexOffset < 0 || b.NeuronCount < 0 {
			errs = append(errs, fmt.Errorf("engine %s: negative offset or count", b.Engine))
		}
	}

	sorted := append([]models.EngineBinding(nil), bindings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IndexOffset < sorted[j].IndexOffset
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		end := prev.IndexOffset + prev.NeuronCount
		switch {
		case cur.IndexOffset < end:
			errs = append(errs, fmt.Errorf("engines %s and %s overlap at index %d", prev.Engine, cur.Engine, cur.IndexOffset))
		case cur.IndexOffset > end:
			errs = append(errs, fmt.Errorf("gap between %s and %s: indices %d..%d unowned", prev.Engine, cur.Engine, end, cur.IndexOffset-1))
		}
	}
	return errors.Join(errs...)
}

// Find returns the binding for engine.
func Find(bindings []models.EngineBinding, engine string) (models.EngineBinding, bool) {
	for _, b := range bindings {
		if b.Engine == engine {
			return b, true
		}
	}
	return models.EngineBinding{}, false
}

// Owner returns the engine whose range holds the global index.
func Owner(bindings []models.EngineBinding, global int) (models.EngineBinding, bool) {
	for _, b := range bindings {
		if b.Owns(global) {
			return b, true
		}
	}
	return models.EngineBinding{}, false
}

// Global translates an engine-local neuron index into global space.
func Global(bindings []models.EngineBinding, engine string, local int) (int, error) {
	b, ok := Find(bindings, engine)
	if !ok {
		return 0, fmt.Errorf("engine %s is not in the deployment map", engine)
	}
	if local < 0 || (b.NeuronCount > 0 && local >= b.NeuronCount) {
		return 0, fmt.Errorf("neuron %d is outside engine %s (count %d)", local, engine, b.NeuronCount)
	}
	return b.IndexOffset + local, nil
}
