package engine

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/frankfanslc/qteasy/internal/backtest/engine/cost"
	"github.com/frankfanslc/qteasy/internal/frame"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

func day(n int) time.Time {
	return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// flatPrices builds a daily price history with every instrument at the given
// price on every date.
func flatPrices(columns []string, days int, price float64) *frame.Frame {
	f := frame.New(columns)

	row := make([]float64, len(columns))
	for i := range row {
		row[i] = price
	}

	for n := 0; n < days; n++ {
		_ = f.SetRow(day(n), row)
	}

	return f
}

type CashPlanTestSuite struct {
	suite.Suite
}

func TestCashPlanSuite(t *testing.T) {
	suite.Run(t, new(CashPlanTestSuite))
}

func (s *CashPlanTestSuite) TestRejectsNonPositiveAmount() {
	_, err := NewCashPlan(CashEntry{Date: day(0), Amount: 0})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidCashPlan))

	_, err = NewCashPlan(CashEntry{Date: day(0), Amount: -100})
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidCashPlan))
}

func (s *CashPlanTestSuite) TestSortsAndMergesDates() {
	plan, err := NewCashPlan(
		CashEntry{Date: day(5), Amount: 200},
		CashEntry{Date: day(0), Amount: 100},
		CashEntry{Date: day(5), Amount: 300},
	)
	s.Require().NoError(err)

	s.Equal(2, plan.Len())
	s.Equal([]time.Time{day(0), day(5)}, plan.Dates())
	s.Equal(100.0, plan.AmountOn(day(0)))
	s.Equal(500.0, plan.AmountOn(day(5)))
	s.Equal(0.0, plan.AmountOn(day(1)))
	s.Equal(600.0, plan.Total())
}

func (s *CashPlanTestSuite) TestMerge() {
	a, err := SingleCashPlan(day(0), 1000)
	s.Require().NoError(err)

	b, err := NewCashPlan(
		CashEntry{Date: day(0), Amount: 500},
		CashEntry{Date: day(3), Amount: 500},
	)
	s.Require().NoError(err)

	merged := a.Merge(b)
	s.Equal(2, merged.Len())
	s.Equal(1500.0, merged.AmountOn(day(0)))
	s.Equal(2000.0, merged.Total())
}

type StepTestSuite struct {
	suite.Suite
}

func TestStepSuite(t *testing.T) {
	suite.Run(t, new(StepTestSuite))
}

func (s *StepTestSuite) TestFullCashBuy() {
	model := cost.NewModel(0, 0, 0.003, 0.001, 0, 0, 0)

	result := loopStep(100000, []float64{0}, []float64{1}, []float64{10}, model, 0)

	wantQty := 100000 / (10 * 1.003)
	wantFee := wantQty * 10 * 0.003

	s.InDelta(wantQty, result.Holdings[0], 1e-9)
	s.InDelta(wantFee, result.Fee, 1e-9)
	s.InDelta(0, result.Cash, 1e-9)
	s.InDelta(100000-wantFee, result.Value, 1e-9)
}

func (s *StepTestSuite) TestFullCashBuyWithMinimumFee() {
	m := cost.NewModel(0, 0, 0.003, 0.001, 5, 0, 0)

	result := loopStep(100000, []float64{0}, []float64{1}, []float64{10}, m, 0)

	// The rate fee far exceeds the 5 minimum, so the minimum never binds.
	wantQty := 100000 / (10 * 1.003)
	s.InDelta(wantQty, result.Holdings[0], 1e-6)
	s.InDelta(wantQty*10*0.003, result.Fee, 1e-6)
	s.InDelta(0, result.Cash, 1e-6)
}

func (s *StepTestSuite) TestNoOpSignalsLeaveStateUnchanged() {
	m := cost.Zero()

	result := loopStep(5000, []float64{300, 0}, []float64{0, 0}, []float64{10, 20}, m, 0)

	s.Equal(5000.0, result.Cash)
	s.Equal([]float64{300, 0}, result.Holdings)
	s.Zero(result.Fee)
	s.InDelta(5000+300*10, result.Value, 1e-9)
}

func (s *StepTestSuite) TestSellAll() {
	model := cost.NewModel(0, 0, 0.003, 0.001, 0, 0, 0)

	result := loopStep(0, []float64{1000}, []float64{-1}, []float64{10}, model, 0)

	s.InDelta(0, result.Holdings[0], 1e-9)
	s.InDelta(10, result.Fee, 1e-9)
	s.InDelta(9990, result.Cash, 1e-9)
	s.InDelta(10000-10, result.Value, 1e-9)
}

func (s *StepTestSuite) TestPartialSell() {
	model := cost.Zero()

	result := loopStep(0, []float64{1000}, []float64{-0.5}, []float64{10}, model, 0)

	s.InDelta(500, result.Holdings[0], 1e-9)
	s.InDelta(5000, result.Cash, 1e-9)
}

func (s *StepTestSuite) TestLotSizeRespected() {
	model := cost.NewModel(0, 0, 0.003, 0.001, 0, 0, 0)

	result := loopStep(100000, []float64{0}, []float64{1}, []float64{10}, model, 100)

	s.InDelta(9900, result.Holdings[0], 1e-9)
	s.Zero(math.Mod(result.Holdings[0], 100))
	s.GreaterOrEqual(result.Cash, 0.0)
}

func (s *StepTestSuite) TestBuyScalingWhenOverCommitted() {
	model := cost.Zero()

	// Intended allocations sum to 160% of the portfolio value; both must be
	// scaled down by the same factor so spending never exceeds cash.
	result := loopStep(10000, []float64{0, 0}, []float64{0.8, 0.8}, []float64{10, 20}, model, 0)

	s.GreaterOrEqual(result.Cash, -1e-9)
	s.InDelta(result.Holdings[0]*10, result.Holdings[1]*20, 1e-9)
	s.InDelta(10000, result.Holdings[0]*10+result.Holdings[1]*20, 1e-9)
}

func (s *StepTestSuite) TestZeroPriceInstrumentUntradable() {
	model := cost.Default()

	result := loopStep(10000, []float64{0}, []float64{1}, []float64{0}, model, 0)

	s.Zero(result.Holdings[0])
	s.InDelta(10000, result.Cash, 1e-9)
	s.Zero(result.Fee)
}

func (s *StepTestSuite) TestValueConservation() {
	model := cost.NewModel(0, 0, 0.003, 0.001, 5, 0, 0)

	cases := []struct {
		cash     float64
		holdings []float64
		signal   []float64
		prices   []float64
		moq      float64
	}{
		{100000, []float64{0, 0}, []float64{0.5, 0.3}, []float64{12, 8}, 0},
		{5000, []float64{200, 100}, []float64{-1, 0.6}, []float64{15, 30}, 100},
		{0, []float64{500, 0}, []float64{-0.4, 0.2}, []float64{9, 50}, 0},
	}

	for _, c := range cases {
		preValue := c.cash
		for i := range c.holdings {
			preValue += c.holdings[i] * c.prices[i]
		}

		result := loopStep(c.cash, c.holdings, c.signal, c.prices, model, c.moq)

		s.InDelta(preValue-result.Fee, result.Value, 1e-6)
		s.GreaterOrEqual(result.Cash, -1e-9)
	}
}

func (s *StepTestSuite) TestTinyAllocationCannotOverdrawCash() {
	model := cost.NewModel(0, 0, 0.003, 0.001, 5, 0, 0)

	// A full-cash buy signal with only 3 units of cash cannot pay the 5 unit
	// minimum fee, so nothing trades and the cash balance stays intact.
	result := loopStep(3, []float64{0}, []float64{1}, []float64{1}, model, 0)

	s.GreaterOrEqual(result.Cash, -1e-9)
	s.InDelta(3, result.Cash, 1e-9)
	s.Zero(result.Holdings[0])
	s.Zero(result.Fee)
}

type EngineTestSuite struct {
	suite.Suite
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) newBacktest(config Config) *Backtest {
	b, err := NewBacktest(config, nil)
	s.Require().NoError(err)

	return b
}

func (s *EngineTestSuite) zeroCostConfig() Config {
	config := DefaultConfig()
	model := cost.Zero()
	config.Cost = &model

	return config
}

func (s *EngineTestSuite) TestRejectsMissingCostModel() {
	config := DefaultConfig()
	config.Cost = nil

	_, err := NewBacktest(config, nil)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeMissingCostModel))
}

func (s *EngineTestSuite) TestRejectsEmptySignalTable() {
	b := s.newBacktest(s.zeroCostConfig())

	plan, err := SingleCashPlan(day(0), 1000)
	s.Require().NoError(err)

	_, err = b.Run(frame.New([]string{"A"}), flatPrices([]string{"A"}, 5, 10), plan)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeEmptySignalTable))
}

func (s *EngineTestSuite) TestRejectsSymbolMismatch() {
	b := s.newBacktest(s.zeroCostConfig())

	signals := frame.New([]string{"A", "B"})
	s.Require().NoError(signals.SetRow(day(0), []float64{1, 0}))

	plan, err := SingleCashPlan(day(0), 1000)
	s.Require().NoError(err)

	_, err = b.Run(signals, flatPrices([]string{"A"}, 5, 10), plan)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeSymbolMismatch))
}

func (s *EngineTestSuite) TestRejectsCashDateOutsidePriceHistory() {
	b := s.newBacktest(s.zeroCostConfig())

	signals := frame.New([]string{"A"})
	s.Require().NoError(signals.SetRow(day(0), []float64{1}))

	offDay := day(0).AddDate(0, 0, 100)
	plan, err := SingleCashPlan(offDay, 1000)
	s.Require().NoError(err)

	_, err = b.Run(signals, flatPrices([]string{"A"}, 5, 10), plan)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeCashDateNotTrading))

	var contract *errors.InputContractError
	s.Require().True(errors.As(err, &contract))
	s.Equal([]time.Time{offDay}, contract.Dates)
	s.Contains(err.Error(), offDay.Format("2006-01-02"))
}

func (s *EngineTestSuite) TestBuyHoldSell() {
	b := s.newBacktest(s.zeroCostConfig())

	signals := frame.New([]string{"A"})
	s.Require().NoError(signals.SetRow(day(0), []float64{1}))
	s.Require().NoError(signals.SetRow(day(1), []float64{0}))
	s.Require().NoError(signals.SetRow(day(2), []float64{-1}))

	plan, err := SingleCashPlan(day(0), 100000)
	s.Require().NoError(err)

	trace, err := b.Run(signals, flatPrices([]string{"A"}, 5, 10), plan)
	s.Require().NoError(err)
	s.Require().Equal(3, trace.Len())

	records := trace.Records()

	s.InDelta(10000, records[0].Holdings[0], 1e-9)
	s.InDelta(0, records[0].Cash, 1e-9)
	s.InDelta(100000, records[0].Value, 1e-9)

	s.InDelta(10000, records[1].Holdings[0], 1e-9)

	s.InDelta(0, records[2].Holdings[0], 1e-9)
	s.InDelta(100000, records[2].Cash, 1e-9)
	s.InDelta(100000, trace.FinalValue(), 1e-9)
}

func (s *EngineTestSuite) TestFlatScheduleLeavesPortfolioUnchanged() {
	b := s.newBacktest(s.zeroCostConfig())

	signals := frame.New([]string{"A", "B"})
	for n := 0; n < 4; n++ {
		s.Require().NoError(signals.SetRow(day(n), []float64{0, 0}))
	}

	plan, err := SingleCashPlan(day(0), 50000)
	s.Require().NoError(err)

	trace, err := b.Run(signals, flatPrices([]string{"A", "B"}, 4, 10), plan)
	s.Require().NoError(err)
	s.Require().Equal(4, trace.Len())

	for _, record := range trace.Records() {
		s.InDelta(50000, record.Cash, 1e-9)
		s.Equal([]float64{0, 0}, record.Holdings)
		s.Zero(record.Fee)
		s.InDelta(50000, record.Value, 1e-9)
	}
}

func (s *EngineTestSuite) TestFeesReduceValueDollarForDollar() {
	config := DefaultConfig()
	model := cost.NewModel(0, 0, 0.003, 0.001, 0, 0, 0)
	config.Cost = &model
	b := s.newBacktest(config)

	signals := frame.New([]string{"A"})
	s.Require().NoError(signals.SetRow(day(0), []float64{1}))
	s.Require().NoError(signals.SetRow(day(1), []float64{-1}))

	plan, err := SingleCashPlan(day(0), 100000)
	s.Require().NoError(err)

	trace, err := b.Run(signals, flatPrices([]string{"A"}, 5, 10), plan)
	s.Require().NoError(err)

	// Prices are flat, so every dollar lost is a fee.
	s.InDelta(100000-trace.TotalFee(), trace.FinalValue(), 1e-6)
	s.Greater(trace.TotalFee(), 0.0)
}

func (s *EngineTestSuite) TestInflationGrowsIdleCash() {
	config := s.zeroCostConfig()
	config.InflationRate = 0.05
	b := s.newBacktest(config)

	signals := frame.New([]string{"A"})
	s.Require().NoError(signals.SetRow(day(0), []float64{0}))
	s.Require().NoError(signals.SetRow(day(365), []float64{0}))

	prices := frame.New([]string{"A"})
	s.Require().NoError(prices.SetRow(day(0), []float64{10}))
	s.Require().NoError(prices.SetRow(day(365), []float64{10}))

	plan, err := SingleCashPlan(day(0), 100000)
	s.Require().NoError(err)

	trace, err := b.Run(signals, prices, plan)
	s.Require().NoError(err)

	// A full year at 5% on the initial cash, nothing traded.
	s.InDelta(100000*1.05, trace.FinalValue(), 1e-6)
}

func (s *EngineTestSuite) TestInjectionNotInflatedOnArrival() {
	config := s.zeroCostConfig()
	config.InflationRate = 0.10
	b := s.newBacktest(config)

	signals := frame.New([]string{"A"})
	s.Require().NoError(signals.SetRow(day(0), []float64{0}))
	s.Require().NoError(signals.SetRow(day(365), []float64{0}))

	prices := frame.New([]string{"A"})
	s.Require().NoError(prices.SetRow(day(0), []float64{10}))
	s.Require().NoError(prices.SetRow(day(365), []float64{10}))

	plan, err := NewCashPlan(
		CashEntry{Date: day(0), Amount: 100000},
		CashEntry{Date: day(365), Amount: 50000},
	)
	s.Require().NoError(err)

	trace, err := b.Run(signals, prices, plan)
	s.Require().NoError(err)

	// Growth applies to the cash held before the second injection, never to
	// the injection itself.
	s.InDelta(100000*1.10+50000, trace.FinalValue(), 1e-6)
}

func (s *EngineTestSuite) TestInjectionOnNonSignalDateAddsZeroRow() {
	b := s.newBacktest(s.zeroCostConfig())

	signals := frame.New([]string{"A"})
	s.Require().NoError(signals.SetRow(day(0), []float64{0}))

	plan, err := NewCashPlan(
		CashEntry{Date: day(0), Amount: 1000},
		CashEntry{Date: day(2), Amount: 500},
	)
	s.Require().NoError(err)

	trace, err := b.Run(signals, flatPrices([]string{"A"}, 5, 10), plan)
	s.Require().NoError(err)

	s.Require().Equal(2, trace.Len())
	s.Equal(day(2), trace.Records()[1].Date)
	s.InDelta(1500, trace.FinalValue(), 1e-9)
}

func (s *EngineTestSuite) TestTimeWindowFiltersSignals() {
	config := s.zeroCostConfig()
	config.StartTime = optional.Some(day(2))
	b := s.newBacktest(config)

	signals := frame.New([]string{"A"})
	for n := 0; n < 5; n++ {
		s.Require().NoError(signals.SetRow(day(n), []float64{0}))
	}

	plan, err := SingleCashPlan(day(2), 1000)
	s.Require().NoError(err)

	trace, err := b.Run(signals, flatPrices([]string{"A"}, 5, 10), plan)
	s.Require().NoError(err)

	s.Equal(3, trace.Len())
	s.Equal(day(2), trace.Records()[0].Date)
}

func (s *EngineTestSuite) TestExpandDaily() {
	b := s.newBacktest(s.zeroCostConfig())

	signals := frame.New([]string{"A"})
	s.Require().NoError(signals.SetRow(day(0), []float64{1}))
	s.Require().NoError(signals.SetRow(day(4), []float64{-1}))

	prices := frame.New([]string{"A"})
	dayPrices := []float64{10, 11, 12, 13, 14}
	for n, p := range dayPrices {
		s.Require().NoError(prices.SetRow(day(n), []float64{p}))
	}

	plan, err := SingleCashPlan(day(0), 100000)
	s.Require().NoError(err)

	trace, err := b.Run(signals, prices, plan)
	s.Require().NoError(err)
	s.Require().Equal(2, trace.Len())

	daily, err := trace.ExpandDaily(prices)
	s.Require().NoError(err)
	s.Require().Equal(5, daily.Len())

	records := daily.Records()

	// Holdings bought on day 0 are carried and marked to each day's price.
	qty := 10000.0
	for n := 0; n < 4; n++ {
		s.Equal(day(n), records[n].Date)
		s.InDelta(qty, records[n].Holdings[0], 1e-9)
		s.InDelta(qty*dayPrices[n], records[n].Value, 1e-9)
	}

	// Everything sold at 14 on the last day.
	s.InDelta(0, records[4].Holdings[0], 1e-9)
	s.InDelta(qty*14, records[4].Value, 1e-9)

	// Fees appear only on trade dates.
	s.Zero(records[1].Fee)
	s.Zero(records[2].Fee)
}

func (s *EngineTestSuite) TestExpandDailyFoldsRecordsBetweenPriceDates() {
	prices := frame.New([]string{"A"})
	s.Require().NoError(prices.SetRow(day(0), []float64{10}))
	s.Require().NoError(prices.SetRow(day(3), []float64{10}))

	// Two trades on dates the price calendar skips must both land on the
	// next price date, with their fees summed and the later state winning.
	trace := NewTrace([]string{"A"})
	trace.append(Record{Date: day(0), Holdings: []float64{10}, Cash: 100, Fee: 1, Value: 200})
	trace.append(Record{Date: day(1), Holdings: []float64{10}, Cash: 50, Fee: 2, Value: 150})
	trace.append(Record{Date: day(2), Holdings: []float64{20}, Cash: 0, Fee: 3, Value: 200})

	daily, err := trace.ExpandDaily(prices)
	s.Require().NoError(err)
	s.Require().Equal(2, daily.Len())

	records := daily.Records()

	s.Equal(day(0), records[0].Date)
	s.InDelta(1, records[0].Fee, 1e-9)

	s.Equal(day(3), records[1].Date)
	s.InDelta(5, records[1].Fee, 1e-9)
	s.InDelta(20, records[1].Holdings[0], 1e-9)
	s.InDelta(0, records[1].Cash, 1e-9)
	s.InDelta(200, records[1].Value, 1e-9)
}
