package optimizer

import (
	"go.uber.org/zap"

	"github.com/frankfanslc/qteasy/internal/backtest/engine"
	"github.com/frankfanslc/qteasy/internal/frame"
	"github.com/frankfanslc/qteasy/internal/logger"
	"github.com/frankfanslc/qteasy/internal/space"
	"github.com/frankfanslc/qteasy/internal/strategy"
)

// Result is the scored outcome of evaluating one candidate parameter
// vector. A candidate that cannot produce a score, because its parameters
// are rejected or its signals cannot be simulated, is marked Failed and
// never enters the ranking.
type Result struct {
	Params []float64
	Score  float64
	Failed bool
	Err    error
}

// Evaluator scores candidate parameter vectors: it injects the vector into
// its strategy, regenerates signals over the fixed price history, runs the
// backtest and reduces the trace through the objective.
type Evaluator struct {
	strategy  strategy.Strategy
	backtest  *engine.Backtest
	prices    *frame.Frame
	plan      *engine.CashPlan
	objective Objective
	log       *logger.Logger
}

// NewEvaluator builds an evaluator over a fixed market setup. The engine
// config is validated here so every later Evaluate is purely numeric.
func NewEvaluator(
	strat strategy.Strategy,
	config engine.Config,
	prices *frame.Frame,
	plan *engine.CashPlan,
	objective Objective,
	log *logger.Logger,
) (*Evaluator, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	backtest, err := engine.NewBacktest(config, log)
	if err != nil {
		return nil, err
	}

	return &Evaluator{
		strategy:  strat,
		backtest:  backtest,
		prices:    prices,
		plan:      plan,
		objective: objective,
		log:       log,
	}, nil
}

// Objective returns the configured ranking objective.
func (e *Evaluator) Objective() Objective {
	return e.objective
}

// Space returns the strategy's parameter space.
func (e *Evaluator) Space() *space.Space {
	return e.strategy.OptSpace()
}

// Clone returns an evaluator with its own strategy instance. Price history,
// cash plan and engine are immutable and shared.
func (e *Evaluator) Clone() *Evaluator {
	clone := *e
	clone.strategy = e.strategy.Clone()

	return &clone
}

// Evaluate scores one candidate. It never returns an error: any failure
// along the signal-generation or simulation path yields a failed Result so
// a search can skip the candidate and move on.
func (e *Evaluator) Evaluate(params []float64) Result {
	fail := func(err error) Result {
		e.log.Debug("candidate failed", zap.Error(err))

		return Result{Params: params, Failed: true, Err: err}
	}

	if err := e.strategy.SetOptParams(params); err != nil {
		return fail(err)
	}

	signals, err := e.strategy.Signals(e.prices)
	if err != nil {
		return fail(err)
	}

	trace, err := e.backtest.Run(signals, e.prices, e.plan)
	if err != nil {
		return fail(err)
	}

	return Result{Params: params, Score: e.objective.Score(trace)}
}
