package optimizer

import (
	"go.uber.org/zap"

	"github.com/frankfanslc/qteasy/internal/logger"
	"github.com/frankfanslc/qteasy/internal/space"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

// GridSearch evaluates every point of an evenly spaced lattice over the
// space in a single round.
type GridSearch struct {
	config Config
	log    *logger.Logger
}

func (g *GridSearch) Name() string {
	return MethodGrid
}

func (g *GridSearch) Search(sp *space.Space, eval *Evaluator) ([]space.Entry, error) {
	candidates, err := sp.Extract(g.config.SampleSize, space.ExtractGrid, nil)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New(errors.ErrCodeEmptySearchSpace, "grid extraction produced no candidates")
	}

	pool := space.NewResultPool(g.config.PoolCapacity, eval.Objective().Maximize())

	failed := evaluateAll(candidates, eval, pool, g.config, "grid search")

	g.log.Info("grid search finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("failed", failed),
	)

	if pool.Len() == 0 {
		return nil, errors.New(errors.ErrCodeEvaluationFailed, "every grid candidate failed to evaluate")
	}

	return rank(pool), nil
}
