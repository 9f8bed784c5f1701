package evolution

import (
	"math"
	"math/rand"
)

// intCandidate scores abs(gen - target).
type intCandidate struct {
	gen     int
	target  int
	mutated int
	rng     *rand.Rand
}

func (c *intCandidate) Gen() any { return c.gen }

func (c *intCandidate) Fitness() float64 {
	return math.Abs(float64(c.gen - c.target))
}

func (c *intCandidate) Mutate() {
	c.mutated++
	if c.rng != nil {
		c.gen += c.rng.Intn(3) - 1
	}
}

func (c *intCandidate) Crossover(partner Candidate) Candidate {
	p := partner.(*intCandidate)
	return &intCandidate{gen: (c.gen + p.gen) / 2, target: c.target, rng: c.rng}
}

func intPopulation(n, target int, rng *rand.Rand) []Candidate {
	pop := make([]Candidate, n)
	for i := range pop {
		pop[i] = &intCandidate{gen: i, target: target, rng: rng}
	}
	return pop
}

// constCandidate always has the same fitness.
type constCandidate struct {
	fitness float64
}

func (c *constCandidate) Gen() any { return c.fitness }
func (c *constCandidate) Fitness() float64 { return c.fitness }
func (c *constCandidate) Mutate() {}
func (c *constCandidate) Crossover(Candidate) Candidate { return &constCandidate{fitness: c.fitness} }

func constPopulation(n int, fitness float64) []Candidate {
	pop := make([]Candidate, n)
	for i := range pop {
		pop[i] = &constCandidate{fitness: fitness}
	}
	return pop
}

// agingCandidate reaches fitness zero once its lineage is deep enough.
// Children are one generation older than the oldest parent.
type agingCandidate struct {
	generation int
	zeroAt     int
}

func (c *agingCandidate) Gen() any { return c.generation }

func (c *agingCandidate) Fitness() float64 {
	return math.Max(0, float64(c.zeroAt-c.generation))
}

func (c *agingCandidate) Mutate() {}

func (c *agingCandidate) Crossover(partner Candidate) Candidate {
	p := partner.(*agingCandidate)
	return &agingCandidate{generation: max(c.generation, p.generation) + 1, zeroAt: c.zeroAt}
}

// recordingCandidate remembers the parents it was bred with.
type recordingCandidate struct {
	id      int
	parents *[][2]int
}

func (c *recordingCandidate) Gen() any { return c.id }
func (c *recordingCandidate) Fitness() float64 { return float64(c.id) }
func (c *recordingCandidate) Mutate() {}

func (c *recordingCandidate) Crossover(partner Candidate) Candidate {
	p := partner.(*recordingCandidate)
	*c.parents = append(*c.parents, [2]int{c.id, p.id})
	return &recordingCandidate{id: -1, parents: c.parents}
}
