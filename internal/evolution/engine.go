package evolution

import (
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Config holds the selection settings of an Engine.
type Config struct {
	// Cutoff is the fraction of the ranked population kept as elites.
	Cutoff float64
	// Diversity is the fraction of the non-elite pool randomly retained.
	Diversity float64
	// MutateRate is the fraction of retained candidates picked for mutation.
	MutateRate float64
	// Growth scales the size of the next generation relative to the current one.
	Growth float64
}

// DefaultConfig returns the default selection settings.
func DefaultConfig() Config {
	return Config{
		Cutoff:     0.2,
		Diversity:  0.1,
		MutateRate: 0.1,
		Growth:     1.0,
	}
}

// Validate checks that the fractions lie in [0, 1] and growth is not negative.
func (c Config) Validate() error {
	fractions := []struct {
		name  string
		value float64
	}{
		{"cutoff", c.Cutoff},
		{"diversity", c.Diversity},
		{"mutate_rate", c.MutateRate},
	}
	for _, f := range fractions {
		if math.IsNaN(f.value) || f.value < 0 || f.value > 1 {
			return WrapErrorf(ErrInvalidConfig, "%s must be within [0, 1], got %v", f.name, f.value).
				WithComponent("config")
		}
	}
	if math.IsNaN(c.Growth) || math.IsInf(c.Growth, 0) || c.Growth < 0 {
		return WrapErrorf(ErrInvalidConfig, "growth must be a finite value >= 0, got %v", c.Growth).
			WithComponent("config")
	}
	return nil
}

// SizeBound returns an upper bound on the population size reached after the
// given number of generations starting from size candidates. Elites and
// diversity never exceed the previous size, so only growth above 1 enlarges
// a generation, and by at most the growth factor.
func (c Config) SizeBound(size, generations int) float64 {
	if c.Growth <= 1 || generations <= 0 {
		return float64(size)
	}
	return float64(size) * math.Pow(c.Growth, float64(generations))
}

// Engine evolves populations of Candidates. An Engine is not safe for
// concurrent use; give each goroutine its own.
type Engine struct {
	config  Config
	rng     *rand.Rand
	logger  *zap.Logger
	metrics *Metrics
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for generation and convergence events.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRand sets the random source used for all index draws.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithSeed seeds the random source. A zero seed uses the current time.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rng = newRand(seed)
	}
}

// WithMetrics records generation and run metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an Engine with the given settings.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config: cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = newRand(0)
	}
	return e, nil
}

// Config returns the engine settings.
func (e *Engine) Config() Config {
	return e.config
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// pick returns a uniform index in [0, n) or -1 when n is zero.
func (e *Engine) pick(n int) int {
	if n <= 0 {
		return -1
	}
	return e.rng.Intn(n)
}

// Darwin produces the next generation from a population sorted by
// ascending fitness. The returned population is not sorted.
//
// The best cutoff fraction is kept. A diversity fraction of the remaining
// candidates, excluding the single worst, is drawn with replacement, so the
// same candidate may occupy several slots. Mutation then hits random slots
// of the survivors, also with replacement. Finally children of random pairs
// from the input population are appended until the size reaches
// growth times the input size. Survivors are never truncated.
func (e *Engine) Darwin(population []Candidate) []Candidate {
	start := time.Now()
	n := len(population)

	cut := int(float64(n) * e.config.Cutoff)
	target := int(float64(n) * e.config.Growth)

	next := make([]Candidate, cut, max(cut, target))
	copy(next, population[:cut])

	var pool []Candidate
	if cut < n-1 {
		pool = population[cut : n-1]
	}

	// diversity
	for i := 0; i < int(e.config.Diversity*float64(len(pool))); i++ {
		if idx := e.pick(len(pool)); idx >= 0 {
			next = append(next, pool[idx])
		}
	}

	// mutation
	for i := 0; i < int(e.config.MutateRate*float64(len(next))); i++ {
		if idx := e.pick(len(next)); idx >= 0 {
			next[idx].Mutate()
		}
	}

	// breeding
	for len(next) < target {
		a, b := e.pick(n), e.pick(n)
		if a < 0 || b < 0 {
			break
		}
		next = append(next, population[a].Crossover(population[b]))
	}

	e.logger.Debug("new population", zap.Int("size", len(next)))
	e.metrics.observeStep(time.Since(start), len(next))
	return next
}
