// Package strategy defines the signal-generating side of a backtest: a
// Strategy turns a price history into a date-indexed table of trade signals,
// and exposes its tunable parameters as a search space so the optimizer can
// re-run it with candidate parameter vectors.
package strategy

import (
	"sort"

	"github.com/frankfanslc/qteasy/internal/frame"
	"github.com/frankfanslc/qteasy/internal/space"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

// Strategy generates trade signals from a price history. Implementations
// must be value-copyable through Clone so parallel optimization can give
// every worker its own instance.
type Strategy interface {
	// Name returns the registry identifier.
	Name() string
	// OptSpace returns the legal ranges of the tunable parameters.
	OptSpace() *space.Space
	// SetOptParams injects one candidate parameter vector, in OptSpace
	// axis order.
	SetOptParams(params []float64) error
	// Clone returns an independent copy carrying the current parameters.
	Clone() Strategy
	// Signals produces the signal table for the given close prices. Rows
	// are sparse: only dates where at least one instrument trades appear.
	Signals(prices *frame.Frame) (*frame.Frame, error)
}

type factory func() Strategy

var registry = map[string]factory{}

func register(name string, f factory) {
	registry[name] = f
}

// New returns a fresh strategy with default parameters.
func New(name string) (Strategy, error) {
	f, ok := registry[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "no strategy named %q", name)
	}

	return f(), nil
}

// Names lists the registered strategies in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// checkParamCount is shared by SetOptParams implementations.
func checkParamCount(name string, params []float64, want int) error {
	if len(params) != want {
		return errors.Newf(errors.ErrCodeStrategyParamCount,
			"%s takes %d parameters, got %d", name, want, len(params))
	}

	return nil
}
