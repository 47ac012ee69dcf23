package engine

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/frankfanslc/qteasy/internal/frame"
	"github.com/frankfanslc/qteasy/internal/logger"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

// daysPerYear converts calendar-day gaps into a fraction of a year when
// growing idle cash between periods.
const daysPerYear = 365

// Backtest drives a full simulation: it walks a signal table and a price
// history in date order, applies the funding plan and per-period trades, and
// produces a Trace.
type Backtest struct {
	config Config
	log    *logger.Logger
}

// NewBacktest validates the config and returns a ready engine.
func NewBacktest(config Config, log *logger.Logger) (*Backtest, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Backtest{config: config, log: log}, nil
}

// Run simulates the given signals against the price history, funded by the
// cash plan. Signals and prices must share instrument columns; the price
// history must cover every injection date. Records are produced for every
// signal and injection date inside the configured time window.
func (b *Backtest) Run(signals, prices *frame.Frame, plan *CashPlan) (*Trace, error) {
	if signals.Empty() {
		return nil, errors.New(errors.ErrCodeEmptySignalTable, "signal table has no rows")
	}

	for _, symbol := range signals.Columns() {
		if prices.ColumnIndex(symbol) < 0 {
			return nil, errors.Newf(errors.ErrCodeSymbolMismatch,
				"signal column %q has no matching price column", symbol)
		}
	}

	dates := b.windowDates(signals, plan)
	if len(dates) == 0 {
		return nil, errors.New(errors.ErrCodeEmptySignalTable, "no signal rows inside the configured time window")
	}

	if missing := b.missingCashDates(prices, plan, dates); len(missing) > 0 {
		return nil, errors.Wrap(errors.ErrCodeCashDateNotTrading,
			"cash plan dates outside the price history",
			errors.NewInputContractError(missing, "injection dates must be trading days"))
	}

	symbols := signals.Columns()
	priceAligned := alignColumns(prices, symbols)

	// Dates missing from either frame yield zero rows: no trade signal, or
	// every instrument untradable that period.
	signalRows := signals.Rows(dates)
	priceRows := priceAligned.Rows(dates)

	trace := NewTrace(symbols)

	cash := 0.0
	holdings := make([]float64, len(symbols))
	prev := dates[0]

	for k, date := range dates {
		if b.config.InflationRate > 0 && date.After(prev) {
			days := date.Sub(prev).Hours() / 24
			cash *= 1 + days/daysPerYear*b.config.InflationRate
		}
		prev = date

		cash += plan.AmountOn(date)

		result := loopStep(cash, holdings, signalRows[k], priceRows[k], *b.config.Cost, b.config.TradeBatchSize)

		cash = result.Cash
		holdings = result.Holdings

		trace.append(Record{
			Date:     date,
			Holdings: holdings,
			Cash:     cash,
			Fee:      result.Fee,
			Value:    result.Value,
		})
	}

	b.log.Debug("backtest finished",
		zap.Int("periods", trace.Len()),
		zap.Float64("invested", plan.Total()),
		zap.Float64("final_value", trace.FinalValue()),
		zap.Float64("total_fee", trace.TotalFee()),
	)

	return trace, nil
}

// windowDates merges signal dates with injection dates, restricted to the
// configured time window, in ascending order.
func (b *Backtest) windowDates(signals *frame.Frame, plan *CashPlan) []time.Time {
	seen := make(map[time.Time]struct{})
	var dates []time.Time

	add := func(date time.Time) {
		if start, err := b.config.StartTime.Take(); err == nil && date.Before(start) {
			return
		}
		if end, err := b.config.EndTime.Take(); err == nil && date.After(end) {
			return
		}
		if _, dup := seen[date]; dup {
			return
		}

		seen[date] = struct{}{}
		dates = append(dates, date)
	}

	for _, date := range signals.Dates() {
		add(date)
	}
	for _, date := range plan.Dates() {
		add(date)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	return dates
}

// missingCashDates returns the injection dates inside the window that the
// price history has no row for.
func (b *Backtest) missingCashDates(prices *frame.Frame, plan *CashPlan, window []time.Time) []time.Time {
	inWindow := make(map[time.Time]struct{}, len(window))
	for _, date := range window {
		inWindow[date] = struct{}{}
	}

	var missing []time.Time
	for _, date := range plan.Dates() {
		if _, ok := inWindow[date]; !ok {
			continue
		}
		if !prices.Has(date) {
			missing = append(missing, date)
		}
	}

	return missing
}

// alignColumns projects the price frame onto the given column order.
func alignColumns(prices *frame.Frame, symbols []string) *frame.Frame {
	indices := make([]int, len(symbols))
	for i, symbol := range symbols {
		indices[i] = prices.ColumnIndex(symbol)
	}

	out := frame.New(symbols)
	row := make([]float64, len(symbols))

	for i, date := range prices.Dates() {
		src := prices.Row(i)
		for j, idx := range indices {
			row[j] = src[idx]
		}

		_ = out.SetRow(date, row)
	}

	return out
}
