package engine

import (
	"time"

	"github.com/frankfanslc/qteasy/internal/frame"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

// Record is the portfolio state at the close of one simulated period.
type Record struct {
	Date     time.Time
	Holdings []float64
	Cash     float64
	Fee      float64
	Value    float64
}

// Trace is the complete time-indexed output of a simulation run: one record
// per traded or funded period, in ascending date order.
type Trace struct {
	symbols []string
	records []Record
}

// NewTrace creates an empty trace over the given instruments.
func NewTrace(symbols []string) *Trace {
	return &Trace{symbols: append([]string(nil), symbols...)}
}

func (t *Trace) append(r Record) {
	t.records = append(t.records, r)
}

// Symbols returns the instrument identifiers, in column order.
func (t *Trace) Symbols() []string {
	return t.symbols
}

// Len returns the number of records.
func (t *Trace) Len() int {
	return len(t.records)
}

// Records returns all records in ascending date order.
func (t *Trace) Records() []Record {
	return t.records
}

// Last returns the final record. It panics on an empty trace.
func (t *Trace) Last() Record {
	return t.records[len(t.records)-1]
}

// Dates returns the record dates in ascending order.
func (t *Trace) Dates() []time.Time {
	dates := make([]time.Time, len(t.records))
	for i, r := range t.records {
		dates[i] = r.Date
	}

	return dates
}

// Values returns the total portfolio value series.
func (t *Trace) Values() []float64 {
	values := make([]float64, len(t.records))
	for i, r := range t.records {
		values[i] = r.Value
	}

	return values
}

// FinalValue returns the total portfolio value of the last record, or zero
// for an empty trace.
func (t *Trace) FinalValue() float64 {
	if len(t.records) == 0 {
		return 0
	}

	return t.Last().Value
}

// TotalFee returns the sum of transaction fees over the whole run.
func (t *Trace) TotalFee() float64 {
	var total float64
	for _, r := range t.records {
		total += r.Fee
	}

	return total
}

// ExpandDaily re-values the trace on every date of the given price history
// from the first record onward. Holdings and cash are carried forward
// between trade dates, fees are only charged on them, and value is marked to
// the prices of each day. Dates in the trace but not in the price history
// keep their recorded value.
func (t *Trace) ExpandDaily(prices *frame.Frame) (*Trace, error) {
	if len(t.records) == 0 {
		return nil, errors.New(errors.ErrCodeEmptySignalTable, "cannot expand an empty trace")
	}

	columns := make([]int, len(t.symbols))
	for i, symbol := range t.symbols {
		idx := prices.ColumnIndex(symbol)
		if idx < 0 {
			return nil, errors.Newf(errors.ErrCodeSymbolMismatch, "price history has no column %q", symbol)
		}

		columns[i] = idx
	}

	expanded := NewTrace(t.symbols)

	next := 0
	current := t.records[0]

	for ri, date := range prices.Dates() {
		if date.Before(t.records[0].Date) {
			continue
		}

		// Several records can fall between two price dates; fold all of them
		// into this day so none is applied late or dropped.
		var fee float64
		for next < len(t.records) && !t.records[next].Date.After(date) {
			current = t.records[next]
			fee += current.Fee
			next++
		}

		row := prices.Row(ri)

		value := current.Cash
		for i := range t.symbols {
			value += current.Holdings[i] * row[columns[i]]
		}

		expanded.append(Record{
			Date:     date,
			Holdings: current.Holdings,
			Cash:     current.Cash,
			Fee:      fee,
			Value:    value,
		})
	}

	return expanded, nil
}
