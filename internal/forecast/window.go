package forecast

import (
	"errors"
	"fmt"
)

// ErrWindowSizeMismatch reports a window that is not exactly W rows long.
var ErrWindowSizeMismatch = errors.New("forecast: window size mismatch")

// Window is a fixed-length ordered sequence of scaled feature rows for one
// device. It is caller-owned mutable state: one window per device, mutated
// only by Roll, and a single writer at a time.
type Window struct {
	size  int
	width int
	rows  [][]float64
}

// NewWindow builds a window from exactly size rows of uniform width. The rows
// are copied so the caller's backing slices stay independent.
func NewWindow(size int, rows [][]float64) (*Window, error) {
	if size <= 0 {
		return nil, errors.New("forecast: window size must be positive")
	}
	if len(rows) != size {
		return nil, fmt.Errorf("%w: got %d rows, want %d", ErrWindowSizeMismatch, len(rows), size)
	}
	width := len(rows[0])
	if width == 0 {
		return nil, errors.New("forecast: empty feature row")
	}
	copied := make([][]float64, size)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("forecast: row %d has width %d, want %d", i, len(row), width)
		}
		copied[i] = append([]float64(nil), row...)
	}
	return &Window{size: size, width: width, rows: copied}, nil
}

// Size returns W.
func (w *Window) Size() int {
	if w == nil {
		return 0
	}
	return w.size
}

// Width returns the feature count of each row.
func (w *Window) Width() int {
	if w == nil {
		return 0
	}
	return w.width
}

// Last returns a copy of the most recent row.
func (w *Window) Last() []float64 {
	if w == nil || len(w.rows) == 0 {
		return nil
	}
	return append([]float64(nil), w.rows[w.size-1]...)
}

// Rows returns a copy of all rows, oldest first.
func (w *Window) Rows() [][]float64 {
	if w == nil {
		return nil
	}
	rows := make([][]float64, w.size)
	for i, row := range w.rows {
		rows[i] = append([]float64(nil), row...)
	}
	return rows
}

// Roll drops the oldest row and appends the given row, preserving length W.
func (w *Window) Roll(row []float64) error {
	if w == nil {
		return errors.New("forecast: nil window")
	}
	if len(row) != w.width {
		return fmt.Errorf("forecast: roll row has width %d, want %d", len(row), w.width)
	}
	copy(w.rows, w.rows[1:])
	w.rows[w.size-1] = append([]float64(nil), row...)
	return nil
}

// Clone returns an independent copy of the window.
func (w *Window) Clone() *Window {
	if w == nil {
		return nil
	}
	clone := &Window{size: w.size, width: w.width, rows: make([][]float64, w.size)}
	for i, row := range w.rows {
		clone.rows[i] = append([]float64(nil), row...)
	}
	return clone
}
