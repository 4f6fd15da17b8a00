package table

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nvandessel/spikerecon/internal/constants"
)

// ErrNoDestination is returned when the output directory or run file name
// is not configured. Only the write step fails; the tables are still valid.
var ErrNoDestination = errors.New("output destination not configured")

// DirSink writes epoch tables as <Dir>/epoch<N>.csv and the full-run table
// as <Dir>/<RunFile>.
//
// N is one more than the largest number already present in Dir, found by
// listing the directory on every write. Two runs writing into the same
// directory at once can pick the same N.
type DirSink struct {
	Dir     string
	RunFile string
}

// WriteEpoch writes t as the next epoch table and returns its path.
func (s *DirSink) WriteEpoch(t *Table) (string, error) {
	if s.Dir == "" {
		return "", fmt.Errorf("writing epoch: %w: output directory", ErrNoDestination)
	}
	n, err := NextEpochNumber(s.Dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, EpochFileName(n))
	if err := writeFile(path, t); err != nil {
		return "", err
	}
	return path, nil
}

// WriteRun writes the full-run table and returns its path.
func (s *DirSink) WriteRun(t *Table) (string, error) {
	if s.Dir == "" {
		return "", fmt.Errorf("writing run: %w: output directory", ErrNoDestination)
	}
	if s.RunFile == "" {
		return "", fmt.Errorf("writing run: %w: clean record file", ErrNoDestination)
	}
	path := filepath.Join(s.Dir, s.RunFile)
	if err := writeFile(path, t); err != nil {
		return "", err
	}
	return path, nil
}

func writeFile(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// EpochFileName returns the file name of epoch n, e.g. "epoch4.csv".
func EpochFileName(n int) string {
	return constants.EpochFilePrefix + strconv.Itoa(n) + constants.EpochFileExt
}

// EpochFile is an epoch table found on disk.
type EpochFile struct {
	Number int
	Path   string
}

// ListEpochs returns the epoch tables in dir ordered by number. Names that
// match epoch*csv without a leading number are skipped. A missing
// directory holds no epochs.
func ListEpochs(dir string) ([]EpochFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading epoch directory: %w", err)
	}

	var epochs []EpochFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := epochNumber(e.Name())
		if !ok {
			continue
		}
		epochs = append(epochs, EpochFile{Number: n, Path: filepath.Join(dir, e.Name())})
	}

	sort.Slice(epochs, func(i, j int) bool {
		return epochs[i].Number < epochs[j].Number
	})
	return epochs, nil
}

// NextEpochNumber returns one more than the largest epoch number in dir,
// or 1 when there is none.
func NextEpochNumber(dir string) (int, error) {
	epochs, err := ListEpochs(dir)
	if err != nil {
		return 0, err
	}
	if len(epochs) == 0 {
		return 1, nil
	}
	return epochs[len(epochs)-1].Number + 1, nil
}

// epochNumber extracts N from names shaped like epoch<N>...csv.
func epochNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, constants.EpochFilePrefix) || !strings.HasSuffix(name, "csv") {
		return 0, false
	}
	rest := strings.TrimPrefix(name, constants.EpochFilePrefix)
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// MemorySink keeps written tables in memory. Epochs are numbered from 1.
type MemorySink struct {
	Epochs []*Table
	Run    *Table
}

// WriteEpoch records t and returns a synthetic name.
func (s *MemorySink) WriteEpoch(t *Table) (string, error) {
	s.Epochs = append(s.Epochs, t)
	return EpochFileName(len(s.Epochs)), nil
}

// WriteRun records t.
func (s *MemorySink) WriteRun(t *Table) (string, error) {
	s.Run = t
	return "memory", nil
}
