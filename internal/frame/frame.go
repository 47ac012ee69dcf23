// Package frame provides a minimal date-indexed table of float64 columns.
// It is the exchange format between the price history loader, the signal
// generating strategies and the backtest engine: rows are trading dates in
// ascending order, one column per tradable instrument.
package frame

import (
	"fmt"
	"sort"
	"time"
)

// Frame is a date-indexed table. Rows are kept sorted by date; dates are
// unique within a frame.
type Frame struct {
	dates   []time.Time
	columns []string
	data    [][]float64
}

// New creates an empty frame with the given column names.
func New(columns []string) *Frame {
	return &Frame{
		dates:   nil,
		columns: append([]string(nil), columns...),
		data:    nil,
	}
}

// NewWithRows creates a frame from parallel date and row slices. Rows are
// sorted by date. Every row must have one value per column.
func NewWithRows(columns []string, dates []time.Time, rows [][]float64) (*Frame, error) {
	if len(dates) != len(rows) {
		return nil, fmt.Errorf("frame: %d dates for %d rows", len(dates), len(rows))
	}

	f := New(columns)
	for i, date := range dates {
		if err := f.SetRow(date, rows[i]); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// Columns returns the column names.
func (f *Frame) Columns() []string {
	return f.columns
}

// Dates returns the row index in ascending order.
func (f *Frame) Dates() []time.Time {
	return f.dates
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.dates)
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	return len(f.columns)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool {
	return len(f.dates) == 0
}

// IndexOf returns the row position of date and whether it is present.
func (f *Frame) IndexOf(date time.Time) (int, bool) {
	i := sort.Search(len(f.dates), func(i int) bool {
		return !f.dates[i].Before(date)
	})
	if i < len(f.dates) && f.dates[i].Equal(date) {
		return i, true
	}

	return i, false
}

// Has reports whether a row exists for date.
func (f *Frame) Has(date time.Time) bool {
	_, ok := f.IndexOf(date)

	return ok
}

// Row returns the values of row i. The returned slice is the backing array;
// callers must not modify it.
func (f *Frame) Row(i int) []float64 {
	return f.data[i]
}

// Date returns the date of row i.
func (f *Frame) Date(i int) time.Time {
	return f.dates[i]
}

// SetRow inserts or replaces the row at date, keeping the index sorted.
func (f *Frame) SetRow(date time.Time, values []float64) error {
	if len(values) != len(f.columns) {
		return fmt.Errorf("frame: row has %d values, frame has %d columns", len(values), len(f.columns))
	}

	row := append([]float64(nil), values...)

	i, ok := f.IndexOf(date)
	if ok {
		f.data[i] = row

		return nil
	}

	f.dates = append(f.dates, time.Time{})
	copy(f.dates[i+1:], f.dates[i:])
	f.dates[i] = date

	f.data = append(f.data, nil)
	copy(f.data[i+1:], f.data[i:])
	f.data[i] = row

	return nil
}

// SetZeroRow inserts an all-zero row at date if no row exists there.
func (f *Frame) SetZeroRow(date time.Time) error {
	if f.Has(date) {
		return nil
	}

	return f.SetRow(date, make([]float64, len(f.columns)))
}

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.columns {
		if c == name {
			return i
		}
	}

	return -1
}

// Column returns a copy of the named column's values, aligned with Dates.
func (f *Frame) Column(name string) ([]float64, error) {
	j := f.ColumnIndex(name)
	if j < 0 {
		return nil, fmt.Errorf("frame: no column %q", name)
	}

	out := make([]float64, len(f.data))
	for i, row := range f.data {
		out[i] = row[j]
	}

	return out, nil
}

// Rows returns copies of the selected rows for the given dates. A date with
// no exact row yields a zero row.
func (f *Frame) Rows(dates []time.Time) [][]float64 {
	out := make([][]float64, len(dates))

	for k, date := range dates {
		i, ok := f.IndexOf(date)
		if ok {
			out[k] = append([]float64(nil), f.data[i]...)
		} else {
			out[k] = make([]float64, len(f.columns))
		}
	}

	return out
}
