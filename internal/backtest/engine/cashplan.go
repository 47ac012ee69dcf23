package engine

import (
	"sort"
	"time"

	"github.com/frankfanslc/qteasy/pkg/errors"
)

// CashEntry is one scheduled capital injection.
type CashEntry struct {
	Date   time.Time `yaml:"date" json:"date"`
	Amount float64   `yaml:"amount" json:"amount" validate:"gt=0"`
}

// CashPlan is the funding schedule of one simulation run: an ordered set of
// dated capital injections. It is immutable after construction.
type CashPlan struct {
	entries []CashEntry
}

// NewCashPlan builds a plan from the given entries. Entries are sorted by
// date and entries sharing a date are combined. Every amount must be
// positive.
func NewCashPlan(entries ...CashEntry) (*CashPlan, error) {
	byDate := make(map[time.Time]float64, len(entries))

	for _, e := range entries {
		if e.Amount <= 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidCashPlan,
				"investment amount must be positive, got %v on %s", e.Amount, e.Date.Format("2006-01-02"))
		}

		byDate[e.Date] += e.Amount
	}

	plan := &CashPlan{entries: make([]CashEntry, 0, len(byDate))}
	for date, amount := range byDate {
		plan.entries = append(plan.entries, CashEntry{Date: date, Amount: amount})
	}

	sort.Slice(plan.entries, func(i, j int) bool {
		return plan.entries[i].Date.Before(plan.entries[j].Date)
	})

	return plan, nil
}

// SingleCashPlan builds a plan with one injection, the common case of a
// one-off initial investment.
func SingleCashPlan(date time.Time, amount float64) (*CashPlan, error) {
	return NewCashPlan(CashEntry{Date: date, Amount: amount})
}

// Len returns the number of injections.
func (p *CashPlan) Len() int {
	return len(p.entries)
}

// Dates returns all injection dates in ascending order.
func (p *CashPlan) Dates() []time.Time {
	dates := make([]time.Time, len(p.entries))
	for i, e := range p.entries {
		dates[i] = e.Date
	}

	return dates
}

// Total returns the sum of all injected amounts.
func (p *CashPlan) Total() float64 {
	var total float64
	for _, e := range p.entries {
		total += e.Amount
	}

	return total
}

// AmountOn returns the amount injected on the given date, or zero.
func (p *CashPlan) AmountOn(date time.Time) float64 {
	for _, e := range p.entries {
		if e.Date.Equal(date) {
			return e.Amount
		}
	}

	return 0
}

// Merge combines two plans into a new one; injections sharing a date are
// summed.
func (p *CashPlan) Merge(other *CashPlan) *CashPlan {
	entries := append(append([]CashEntry(nil), p.entries...), other.entries...)

	// Construction cannot fail: both inputs were already validated.
	merged, _ := NewCashPlan(entries...)

	return merged
}
