package optimizer

import (
	"runtime"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/frankfanslc/qteasy/internal/logger"
	"github.com/frankfanslc/qteasy/internal/space"
	"github.com/frankfanslc/qteasy/pkg/errors"
)

// Searcher drives one parameter search: it extracts candidates from the
// space, scores them through the evaluator and returns the surviving
// entries ranked worst to best.
type Searcher interface {
	// Name returns the method identifier.
	Name() string
	// Search runs the full search.
	Search(sp *space.Space, eval *Evaluator) ([]space.Entry, error)
}

// NewSearcher builds the searcher the config names. The config must already
// be validated.
func NewSearcher(config Config, log *logger.Logger) (Searcher, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	switch config.Method {
	case MethodGrid:
		return &GridSearch{config: config, log: log}, nil
	case MethodMonteCarlo:
		return &MonteCarloSearch{config: config, log: log}, nil
	case MethodIncremental:
		return &IncrementalSearch{config: config, log: log}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownSearcher, "no search method named %q", config.Method)
	}
}

// evaluateAll scores every candidate and enters the successes into the
// pool. With more than one worker the candidates are distributed over a
// fixed pool of goroutines, each owning its own strategy clone; the pool is
// only touched from this goroutine as results arrive, so insertion needs no
// locking. Returns the number of failed candidates.
func evaluateAll(candidates [][]float64, eval *Evaluator, pool *space.ResultPool, config Config, describe string) int {
	var bar *progressbar.ProgressBar
	if config.Progress {
		bar = progressbar.Default(int64(len(candidates)))
		bar.Describe(describe)
	}

	workers := config.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	failed := 0
	collect := func(r Result) {
		if bar != nil {
			_ = bar.Add(1)
		}
		if r.Failed {
			failed++

			return
		}

		pool.Enter(r.Params, r.Score)
	}

	if workers <= 1 {
		for _, params := range candidates {
			collect(eval.Evaluate(params))
		}

		return failed
	}

	work := make(chan []float64)
	results := make(chan Result)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		worker := eval.Clone()

		wg.Add(1)
		go func() {
			defer wg.Done()
			for params := range work {
				results <- worker.Evaluate(params)
			}
		}()
	}

	go func() {
		for _, params := range candidates {
			work <- params
		}
		close(work)

		wg.Wait()
		close(results)
	}()

	for r := range results {
		collect(r)
	}

	return failed
}

// rank cuts the pool and copies out the surviving entries, worst to best.
func rank(pool *space.ResultPool) []space.Entry {
	pool.Cut()

	return append([]space.Entry(nil), pool.Entries()...)
}
