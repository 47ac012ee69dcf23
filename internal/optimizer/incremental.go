package optimizer

import (
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/frankfanslc/qteasy/internal/logger"
	"github.com/frankfanslc/qteasy/internal/space"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

// IncrementalSearch narrows the space over rounds: round one samples the
// whole space uniformly, then each round keeps the best candidates and
// re-samples inside shrinking neighborhoods around them. The per-axis
// shrink factor is chosen so the combined volume of all neighborhoods
// decays geometrically with the reduce ratio. The search stops once that
// combined volume falls below the configured minimum, or at the round cap.
type IncrementalSearch struct {
	config Config
	log    *logger.Logger
}

func (s *IncrementalSearch) Name() string {
	return MethodIncremental
}

func (s *IncrementalSearch) Search(sp *space.Space, eval *Evaluator) ([]space.Entry, error) {
	if s.config.ReduceRatio <= 0 || s.config.ReduceRatio >= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidReduceRatio,
			"reduce ratio must be in (0, 1), got %v", s.config.ReduceRatio)
	}

	rng := rand.New(rand.NewSource(s.config.Seed))

	initialVolume := sp.Volume()

	survivors := int(float64(s.config.SampleSize) * s.config.ReduceRatio)
	if survivors < 1 {
		survivors = 1
	}

	// The analytic round estimate is only a forecast for reporting; the
	// stop condition below is recomputed from actual volumes every round.
	estimate := math.Ceil(math.Log(s.config.MinVolume/initialVolume) / math.Log(s.config.ReduceRatio))
	if estimate < 1 || math.IsNaN(estimate) {
		estimate = 1
	}
	if estimate > float64(s.config.MaxRounds) {
		estimate = float64(s.config.MaxRounds)
	}

	s.log.Info("incremental search starting",
		zap.Float64("initial_volume", initialVolume),
		zap.Float64("estimated_rounds", estimate),
		zap.Int("survivors_per_round", survivors),
	)

	pool := space.NewResultPool(survivors, eval.Objective().Maximize())

	spaces := []*space.Space{sp}

	for round := 1; round <= s.config.MaxRounds; round++ {
		perSpace := s.config.SampleSize / len(spaces)
		if perSpace < 1 {
			perSpace = 1
		}

		var candidates [][]float64
		for _, sub := range spaces {
			extracted, err := sub.Extract(perSpace, space.ExtractRandom, rng)
			if err != nil {
				return nil, err
			}

			candidates = append(candidates, extracted...)
		}

		failed := evaluateAll(candidates, eval, pool, s.config, fmt.Sprintf("incremental round %d", round))

		pool.Cut()
		if pool.Len() == 0 {
			return nil, errors.Newf(errors.ErrCodeEvaluationFailed,
				"every candidate failed to evaluate in round %d", round)
		}

		entries := pool.Entries()

		shrink := math.Pow(
			math.Pow(s.config.ReduceRatio, float64(round))/float64(len(entries)),
			1/float64(sp.Dim()),
		)

		halfWidths := make([]float64, sp.Dim())
		for i, axis := range sp.Axes() {
			if axis.Kind == space.AxisEnum {
				continue
			}

			halfWidths[i] = (axis.High - axis.Low) * shrink / 2
		}

		spaces = spaces[:0]
		totalVolume := 0.0
		for _, e := range entries {
			sub, err := sp.FromPoint(e.Params, halfWidths)
			if err != nil {
				return nil, err
			}

			spaces = append(spaces, sub)
			totalVolume += sub.Volume()
		}

		s.log.Info("incremental round finished",
			zap.Int("round", round),
			zap.Int("candidates", len(candidates)),
			zap.Int("failed", failed),
			zap.Float64("total_volume", totalVolume),
		)

		if totalVolume < s.config.MinVolume {
			break
		}
	}

	final := space.NewResultPool(s.config.PoolCapacity, eval.Objective().Maximize())
	for _, e := range pool.Entries() {
		final.Enter(e.Params, e.Score)
	}

	return rank(final), nil
}
