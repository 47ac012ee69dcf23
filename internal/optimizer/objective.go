package optimizer

import (
	"github.com/frankfanslc/qteasy/internal/backtest/engine"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

// Objective reduces a full simulation trace to the single scalar a search
// ranks candidates by.
type Objective interface {
	// Name returns the registry identifier.
	Name() string
	// Score computes the scalar for one finished run.
	Score(trace *engine.Trace) float64
	// Maximize reports the ranking direction.
	Maximize() bool
}

// ObjectiveByName resolves a configured objective name.
func ObjectiveByName(name string) (Objective, error) {
	switch name {
	case "final-value":
		return FinalValue{}, nil
	case "max-drawdown":
		return MaxDrawdown{}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownObjective, "no objective named %q", name)
	}
}

// FinalValue ranks candidates by the closing portfolio value, higher is
// better.
type FinalValue struct{}

func (FinalValue) Name() string { return "final-value" }

func (FinalValue) Maximize() bool { return true }

func (FinalValue) Score(trace *engine.Trace) float64 {
	return trace.FinalValue()
}

// MaxDrawdown ranks candidates by the deepest peak-to-trough loss of the
// value series, as a fraction of the peak. Lower is better.
type MaxDrawdown struct{}

func (MaxDrawdown) Name() string { return "max-drawdown" }

func (MaxDrawdown) Maximize() bool { return false }

func (MaxDrawdown) Score(trace *engine.Trace) float64 {
	var peak, worst float64

	for _, v := range trace.Values() {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > worst {
				worst = drawdown
			}
		}
	}

	return worst
}
