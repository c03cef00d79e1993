package ml

import (
	"errors"
	"fmt"
	"strings"
)

// Frame is a named-column table of readings, the shape every provider
// consumes. Columns may be nil for purely positional input.
type Frame struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// NewSampleFrame lays samples out in training column order.
func NewSampleFrame(samples ...WaterSample) *Frame {
	rows := make([][]float64, len(samples))
	for i, s := range samples {
		rows[i] = FeatureVector(s)
	}
	return &Frame{Columns: FeatureNames(), Rows: rows}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Validate checks that every row has one value per column.
func (f *Frame) Validate() error {
	if f == nil {
		return errors.New("frame is nil")
	}
	width := len(f.Columns)
	for i, row := range f.Rows {
		if width == 0 && i == 0 {
			width = len(row)
		}
		if len(row) != width {
			return fmt.Errorf("row %d has %d values, expected %d", i+1, len(row), width)
		}
	}
	return nil
}

// Index returns the position of the named column, or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Select returns a frame holding only the named columns, in the given
// order. Every missing column is listed in the error.
func (f *Frame) Select(names []string) (*Frame, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	idx := make([]int, len(names))
	var missing []string
	for i, name := range names {
		idx[i] = f.Index(name)
		if idx[i] < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	rows := make([][]float64, len(f.Rows))
	for r, row := range f.Rows {
		out := make([]float64, len(idx))
		for i, j := range idx {
			out[i] = row[j]
		}
		rows[r] = out
	}
	return &Frame{Columns: append([]string(nil), names...), Rows: rows}, nil
}

// Arrange returns the rows laid out as names. Named frames are reordered by
// column; positional frames must already be exactly len(names) wide.
func (f *Frame) Arrange(names []string) ([][]float64, error) {
	if f == nil {
		return nil, errors.New("frame is nil")
	}
	if len(f.Columns) > 0 {
		selected, err := f.Select(names)
		if err != nil {
			return nil, err
		}
		return selected.Rows, nil
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	for i, row := range f.Rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i+1, len(row), len(names))
		}
	}
	return f.Rows, nil
}
