package evolution

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t testing.TB, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, WithSeed(42))
	require.NoError(t, err)
	return e
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.2, cfg.Cutoff)
	assert.Equal(t, 0.1, cfg.Diversity)
	assert.Equal(t, 0.1, cfg.MutateRate)
	assert.Equal(t, 1.0, cfg.Growth)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero fractions", func(c *Config) { *c = Config{} }, false},
		{"all ones", func(c *Config) { *c = Config{Cutoff: 1, Diversity: 1, MutateRate: 1, Growth: 1} }, false},
		{"large growth", func(c *Config) { c.Growth = 3.5 }, false},
		{"negative cutoff", func(c *Config) { c.Cutoff = -0.1 }, true},
		{"cutoff above one", func(c *Config) { c.Cutoff = 1.5 }, true},
		{"diversity above one", func(c *Config) { c.Diversity = 2 }, true},
		{"negative mutate rate", func(c *Config) { c.MutateRate = -1 }, true},
		{"negative growth", func(c *Config) { c.Growth = -0.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)

				_, err = NewEngine(cfg)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSortPopulationIsStable(t *testing.T) {
	a := &constCandidate{fitness: 1}
	b := &constCandidate{fitness: 0}
	c := &constCandidate{fitness: 1}
	d := &constCandidate{fitness: 0}
	pop := []Candidate{a, b, c, d}

	SortPopulation(pop)

	assert.Same(t, b, pop[0])
	assert.Same(t, d, pop[1])
	assert.Same(t, a, pop[2])
	assert.Same(t, c, pop[3])
}

func TestDarwinKeepsElites(t *testing.T) {
	pop := intPopulation(10, 5, nil)
	SortPopulation(pop)
	elites := []Candidate{pop[0], pop[1]}

	e := newTestEngine(t, Config{Cutoff: 0.2, Diversity: 0.1, MutateRate: 0, Growth: 1})
	next := e.Darwin(pop)

	require.GreaterOrEqual(t, len(next), 2)
	assert.Same(t, elites[0], next[0])
	assert.Same(t, elites[1], next[1])
	assert.Equal(t, 5, next[0].Gen())
}

func TestDarwinSize(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		size     int
		wantSize int
	}{
		{"growth one refills", DefaultConfig(), 10, 10},
		{"growth one larger population", DefaultConfig(), 50, 50},
		{"growth two doubles", Config{Cutoff: 0.2, Diversity: 0.1, MutateRate: 0.1, Growth: 2}, 10, 20},
		{"shrinking", Config{Cutoff: 0.2, Diversity: 0, MutateRate: 0, Growth: 0.5}, 10, 5},
		// 8 elites plus 1 diversity draw already exceed the target of 5.
		{"survivors overshoot target", Config{Cutoff: 0.8, Diversity: 1, MutateRate: 0, Growth: 0.5}, 10, 9},
		{"zero growth keeps survivors only", Config{Cutoff: 0.5, Diversity: 0, MutateRate: 0, Growth: 0}, 10, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pop := intPopulation(tt.size, tt.size/2, nil)
			SortPopulation(pop)

			e := newTestEngine(t, tt.cfg)
			next := e.Darwin(pop)
			assert.Len(t, next, tt.wantSize)
		})
	}
}

func TestConfigSizeBound(t *testing.T) {
	shrinking := Config{Cutoff: 0.2, Diversity: 0.1, Growth: 0.5}
	assert.Equal(t, 10.0, shrinking.SizeBound(10, 50))
	assert.Equal(t, 10.0, DefaultConfig().SizeBound(10, 50))

	growing := Config{Cutoff: 0.2, Diversity: 0.1, Growth: 3}
	assert.Equal(t, 10.0, growing.SizeBound(10, 0))
	assert.Equal(t, 270.0, growing.SizeBound(10, 3))
	assert.True(t, math.IsInf(Config{Growth: 1000}.SizeBound(1000, 100000), 1))

	e := newTestEngine(t, growing)
	pop := constPopulation(10, 1)
	for gen := 1; gen <= 6; gen++ {
		pop = e.Darwin(pop)
		assert.LessOrEqual(t, float64(len(pop)), growing.SizeBound(10, gen), "generation %d", gen)
	}
	assert.Len(t, pop, 7290)
}

func TestDarwinDiversityExcludesWorst(t *testing.T) {
	pop := intPopulation(10, 0, nil)
	SortPopulation(pop)
	worst := pop[len(pop)-1]

	e := newTestEngine(t, Config{Cutoff: 0, Diversity: 1, MutateRate: 0, Growth: 0})
	next := e.Darwin(pop)

	require.Len(t, next, 9)
	for _, c := range next {
		assert.NotSame(t, worst, c)
	}
}

func TestDarwinDiversitySharesReferences(t *testing.T) {
	cfg := Config{Cutoff: 0, Diversity: 1, MutateRate: 0, Growth: 0}

	found := false
	for seed := int64(1); seed <= 200 && !found; seed++ {
		pop := intPopulation(3, 0, nil)
		SortPopulation(pop)

		e, err := NewEngine(cfg, WithSeed(seed))
		require.NoError(t, err)

		next := e.Darwin(pop)
		require.Len(t, next, 2)
		if next[0] != next[1] {
			continue
		}
		found = true

		next[0].Mutate()
		assert.Equal(t, 1, next[1].(*intCandidate).mutated)
	}
	require.True(t, found, "expected a seed that draws the same candidate twice")
}

func TestDarwinMutationCount(t *testing.T) {
	pop := intPopulation(10, 5, nil)
	SortPopulation(pop)

	e := newTestEngine(t, Config{Cutoff: 1, Diversity: 0, MutateRate: 0.5, Growth: 1})
	next := e.Darwin(pop)
	require.Len(t, next, 10)

	total := 0
	for _, c := range pop {
		total += c.(*intCandidate).mutated
	}
	assert.Equal(t, 5, total)
}

func TestDarwinBreedsFromInputPopulation(t *testing.T) {
	var parents [][2]int
	pop := make([]Candidate, 5)
	for i := range pop {
		pop[i] = &recordingCandidate{id: i, parents: &parents}
	}

	e := newTestEngine(t, Config{Cutoff: 0, Diversity: 0, MutateRate: 0, Growth: 2})
	next := e.Darwin(pop)

	assert.Len(t, next, 10)
	require.Len(t, parents, 10)
	for _, pair := range parents {
		for _, id := range pair {
			assert.GreaterOrEqual(t, id, 0)
			assert.Less(t, id, 5)
		}
	}
}

func TestDarwinDegeneratePopulations(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, e.Darwin(nil))
	})

	t.Run("single candidate crosses with itself", func(t *testing.T) {
		only := &intCandidate{gen: 3, target: 0}
		next := e.Darwin([]Candidate{only})

		require.Len(t, next, 1)
		assert.NotSame(t, only, next[0])
		assert.Equal(t, 3, next[0].Gen())
	})

	t.Run("pool of two holds only the better one", func(t *testing.T) {
		e := newTestEngine(t, Config{Cutoff: 0, Diversity: 1, MutateRate: 0, Growth: 0})
		pop := intPopulation(2, 0, nil)
		SortPopulation(pop)

		next := e.Darwin(pop)
		require.Len(t, next, 1)
		assert.Same(t, pop[0], next[0])
	})

	t.Run("full cutoff leaves no pool", func(t *testing.T) {
		e := newTestEngine(t, Config{Cutoff: 1, Diversity: 1, MutateRate: 0, Growth: 1})
		pop := intPopulation(4, 0, nil)
		next := e.Darwin(pop)
		assert.Len(t, next, 4)
	})
}

func TestUnimplementedCapability(t *testing.T) {
	type partial struct {
		Unimplemented
	}

	tests := []struct {
		name string
		call func(Candidate)
	}{
		{"gen", func(c Candidate) { c.Gen() }},
		{"fitness", func(c Candidate) { c.Fitness() }},
		{"mutate", func(c Candidate) { c.Mutate() }},
		{"crossover", func(c Candidate) { c.Crossover(c) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				err, ok := r.(error)
				require.True(t, ok)
				assert.ErrorIs(t, err, ErrUnimplemented)
				assert.Contains(t, err.Error(), tt.name)
			}()
			tt.call(partial{})
		})
	}
}

func TestEngineDoesNotRecoverUnimplemented(t *testing.T) {
	type lazy struct {
		Unimplemented
	}

	e := newTestEngine(t, DefaultConfig())
	assert.Panics(t, func() {
		e.Run([]Candidate{lazy{}, lazy{}}, 1)
	})
}

func BenchmarkDarwin(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	pop := intPopulation(1000, 500, rng)
	SortPopulation(pop)
	e := newTestEngine(b, DefaultConfig())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Darwin(pop)
	}
}
