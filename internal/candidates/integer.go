// Package candidates provides concrete evolution.Candidate variants.
//
// Every variant owns a *rand.Rand shared by the whole population it was
// generated with. Populations are therefore not safe for concurrent use,
// matching the single goroutine execution of an evolution run.
package candidates

import (
	"math"
	"math/rand"

	"github.com/copyleftdev/darwin/internal/evolution"
)

// Integer searches for an integer target within [0, Max].
type Integer struct {
	gen    int
	target int
	max    int
	rng    *rand.Rand
}

// NewInteger creates an Integer with the given gene.
func NewInteger(gen, target, max int, rng *rand.Rand) *Integer {
	return &Integer{gen: gen, target: target, max: max, rng: rng}
}

// Value returns the gene.
func (c *Integer) Value() int { return c.gen }

// Gen implements evolution.Candidate.
func (c *Integer) Gen() any { return c.gen }

// Fitness is the distance to the target.
func (c *Integer) Fitness() float64 {
	return math.Abs(float64(c.gen - c.target))
}

// Mutate moves the gene by one step in a random direction, staying in range.
func (c *Integer) Mutate() {
	if c.rng.Intn(2) == 0 {
		c.gen--
	} else {
		c.gen++
	}
	c.gen = min(max(c.gen, 0), c.max)
}

// Crossover returns a child carrying the mean of both genes, rounded in a
// random direction.
func (c *Integer) Crossover(partner evolution.Candidate) evolution.Candidate {
	p, ok := partner.(*Integer)
	if !ok {
		panic(mismatch("integer", partner))
	}
	sum := c.gen + p.gen
	gen := sum / 2
	if sum%2 != 0 && c.rng.Intn(2) == 1 {
		gen++
	}
	return NewInteger(gen, c.target, c.max, c.rng)
}

// IntegerPopulation returns size candidates with genes drawn uniformly from
// [0, max].
func IntegerPopulation(size, target, max int, rng *rand.Rand) []evolution.Candidate {
	pop := make([]evolution.Candidate, size)
	for i := range pop {
		pop[i] = NewInteger(rng.Intn(max+1), target, max, rng)
	}
	return pop
}
