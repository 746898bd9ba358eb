package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPeriod is returned when a selected label has no summary row.
	ErrUnknownPeriod = errors.New("engine: unknown period")
	// ErrIncompleteSelection is returned while either period selector is empty.
	ErrIncompleteSelection = errors.New("engine: incomplete period selection")
	// ErrEmptyDataset is returned when the source holds no data rows.
	ErrEmptyDataset = errors.New("engine: dataset has no rows")
)

// RowError reports the first source row that failed to load.
type RowError struct {
	Row    int // 1-based data row, header excluded
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("engine: row %d column %s: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

func unknownPeriod(label string) error {
	return fmt.Errorf("%w: %q", ErrUnknownPeriod, label)
}
