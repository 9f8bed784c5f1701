package evolution

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// Outcome tells why a run stopped.
type Outcome string

const (
	// GoalReached means the best candidate hit the fitness goal.
	GoalReached Outcome = "goal_reached"
	// Stabilized means two consecutive generations had the same fitness sum.
	Stabilized Outcome = "stabilized"
	// Exhausted means the iteration limit was passed without converging.
	Exhausted Outcome = "exhausted"
	// Cancelled means the context was done before the run finished.
	Cancelled Outcome = "cancelled"
)

// Result is the outcome of Evolve.
type Result struct {
	// Iterations is the loop counter at termination. It is the index of the
	// generation that met the goal or stabilized, and maxRuns+1 when the
	// run was exhausted.
	Iterations int
	// Population is the final population sorted by ascending fitness.
	Population []Candidate
	Outcome    Outcome
	// StabilizedAt is the generation the population stabilized after, or
	// -1 if the run did not stabilize.
	StabilizedAt int
	// History holds one entry per completed generation.
	History []GenerationStats
}

// Best returns the fittest candidate of the final population.
func (r *Result) Best() Candidate {
	if r == nil || len(r.Population) == 0 {
		return nil
	}
	return r.Population[0]
}

type runOptions struct {
	goal       float64
	stabilizer bool
	tolerance  float64
	observer   func(GenerationStats)
}

// RunOption customizes a single run.
type RunOption func(*runOptions)

// WithFitnessGoal sets the fitness that ends the run once the best
// candidate reaches it. The default goal is 0.
func WithFitnessGoal(goal float64) RunOption {
	return func(o *runOptions) {
		o.goal = goal
	}
}

// WithStabilizer stops the run once the population fitness sum is unchanged
// between consecutive generations. Only meaningful with a growth of 1.
//
// The previous sum starts at 0, so a population whose fitness sum is exactly
// 0 after the first generation is reported as stabilized immediately.
func WithStabilizer(enabled bool) RunOption {
	return func(o *runOptions) {
		o.stabilizer = enabled
	}
}

// WithTolerance relaxes the goal and stabilization checks from exact
// equality to an absolute difference of at most tol.
func WithTolerance(tol float64) RunOption {
	return func(o *runOptions) {
		if tol > 0 {
			o.tolerance = tol
		}
	}
}

// WithObserver registers a callback invoked after every generation.
func WithObserver(fn func(GenerationStats)) RunOption {
	return func(o *runOptions) {
		o.observer = fn
	}
}

// Run evolves population for at most maxRuns+1 generations and returns the
// iteration count and the final population sorted by fitness. It panics if
// the population contains a nil candidate.
func (e *Engine) Run(population []Candidate, maxRuns int, opts ...RunOption) (int, []Candidate) {
	res, err := e.Evolve(context.Background(), population, maxRuns, opts...)
	if err != nil {
		panic(err)
	}
	return res.Iterations, res.Population
}

// Evolve is the full form of Run. It checks ctx between generations and
// returns the partial result together with ctx.Err() when cancelled.
// The population slice is sorted in place before the first generation.
func (e *Engine) Evolve(ctx context.Context, population []Candidate, maxRuns int, opts ...RunOption) (*Result, error) {
	for i, c := range population {
		if c == nil {
			return nil, WrapErrorf(ErrNilCandidate, "index %d", i).
				WithOperation("evolve").
				WithComponent("engine")
		}
	}

	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	res := &Result{
		Outcome:      Exhausted,
		StabilizedAt: -1,
	}

	iteration := 0
	fitnessSum := 0.0
	SortPopulation(population)

	for iteration <= maxRuns {
		if err := ctx.Err(); err != nil {
			res.Outcome = Cancelled
			res.Iterations = iteration
			res.Population = population
			e.logger.Info("run cancelled", zap.Int("iteration", iteration), zap.Error(err))
			e.metrics.observeRun(res)
			return res, err
		}

		e.logger.Debug("iteration", zap.Int("iteration", iteration))

		population = e.Darwin(population)
		SortPopulation(population)

		stats := computeStats(iteration, population)
		res.History = append(res.History, stats)
		e.metrics.observeGeneration(stats)
		if o.observer != nil {
			o.observer(stats)
		}

		if len(population) > 0 && o.equal(population[0].Fitness(), o.goal) {
			e.logger.Info("found solution", zap.Int("iteration", iteration))
			res.Outcome = GoalReached
			break
		}

		if o.stabilizer {
			if o.equal(stats.Sum, fitnessSum) {
				e.logger.Info("population stabilized", zap.Int("iteration", iteration-1))
				res.Outcome = Stabilized
				res.StabilizedAt = iteration - 1
				break
			}
			fitnessSum = stats.Sum
		}

		iteration++
	}

	if res.Outcome == Exhausted {
		e.logger.Warn("maximum number of iterations reached", zap.Int("max_runs", maxRuns))
	}

	res.Iterations = iteration
	res.Population = population

	if best := res.Best(); best != nil {
		e.logger.Debug("final population",
			zap.Int("size", len(population)),
			zap.Float64("best_fitness", best.Fitness()),
			zap.String("best", String(best)),
		)
	}
	e.metrics.observeRun(res)
	return res, nil
}

func (o *runOptions) equal(a, b float64) bool {
	if a == b {
		return true
	}
	return o.tolerance > 0 && math.Abs(a-b) <= o.tolerance
}
