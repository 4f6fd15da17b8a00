package record

import (
	"errors"
	"fmt"

	"github.com/nvandessel/spikerecon/internal/pathutil"
)

var (
	// ErrLogNotFound is returned when an engine's record file does not exist.
	ErrLogNotFound = errors.New("engine record not found")

	// ErrParse is wrapped by every ParseError.
	ErrParse = errors.New("malformed engine record")
)

// ParseError identifies the engine, file, row and field of a malformed record.
// Row 0 refers to the header line.
type ParseError struct {
	Engine string
	Path   string
	Row    int
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	where := fmt.Sprintf("engine %s (%s) row %d", e.Engine, pathutil.RedactPath(e.Path), e.Row)
	if e.Row == 0 {
		where = fmt.Sprintf("engine %s (%s) header", e.Engine, pathutil.RedactPath(e.Path))
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", where, e.Err)
	}
	return fmt.Sprintf("%s: field %s=%q: %v", where, e.Field, e.Value, e.Err)
}

// Unwrap lets errors.Is match both ErrParse and the underlying cause.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}
