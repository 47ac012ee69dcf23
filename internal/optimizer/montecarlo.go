package optimizer

import (
	"math/rand"

	"go.uber.org/zap"

	"github.com/frankfanslc/qteasy/internal/logger"
	"github.com/frankfanslc/qteasy/internal/space"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

// MonteCarloSearch evaluates a fixed number of uniformly sampled candidates
// in a single round.
type MonteCarloSearch struct {
	config Config
	log    *logger.Logger
}

func (m *MonteCarloSearch) Name() string {
	return MethodMonteCarlo
}

func (m *MonteCarloSearch) Search(sp *space.Space, eval *Evaluator) ([]space.Entry, error) {
	rng := rand.New(rand.NewSource(m.config.Seed))

	candidates, err := sp.Extract(m.config.SampleSize, space.ExtractRandom, rng)
	if err != nil {
		return nil, err
	}

	pool := space.NewResultPool(m.config.PoolCapacity, eval.Objective().Maximize())

	failed := evaluateAll(candidates, eval, pool, m.config, "monte carlo search")

	m.log.Info("monte carlo search finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("failed", failed),
	)

	if pool.Len() == 0 {
		return nil, errors.New(errors.ErrCodeEvaluationFailed, "every sampled candidate failed to evaluate")
	}

	return rank(pool), nil
}
