package dataset

import (
	"errors"
	"fmt"
	"io/fs"
)

// SourceError indicates a raw source could not be loaded from disk. The loader
// recovers from it by substituting sample data; it is recorded on the Source.
type SourceError struct {
	Name string
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	if e == nil {
		return "source error"
	}
	return fmt.Sprintf("source %s (%s): %v", e.Name, e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Missing reports whether the source file does not exist.
func (e *SourceError) Missing() bool { return errors.Is(e.Err, fs.ErrNotExist) }

// ErrMissingColumn indicates a source lacks a structurally required column.
var ErrMissingColumn = errors.New("missing required column")
