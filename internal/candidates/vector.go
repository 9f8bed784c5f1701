package candidates

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/darwin/internal/evolution"
)

// Vector minimizes an Objective within [-bound, bound]^n.
type Vector struct {
	gen       []float64
	bound     float64
	sigma     float64
	objective Objective
	rng       *rand.Rand
}

// NewVector creates a sphere minimizing Vector owning a copy of gen.
// Mutation steps are drawn from a normal distribution scaled to a tenth of
// the bound.
func NewVector(gen []float64, bound float64, rng *rand.Rand) *Vector {
	return NewObjectiveVector(gen, bound, Sphere, rng)
}

// NewObjectiveVector is NewVector for an arbitrary objective.
func NewObjectiveVector(gen []float64, bound float64, objective Objective, rng *rand.Rand) *Vector {
	return &Vector{
		gen:       append([]float64(nil), gen...),
		bound:     bound,
		sigma:     bound / 10,
		objective: objective,
		rng:       rng,
	}
}

// Values returns a copy of the genes.
func (c *Vector) Values() []float64 {
	return append([]float64(nil), c.gen...)
}

// Gen implements evolution.Candidate.
func (c *Vector) Gen() any { return c.Values() }

// Fitness evaluates the objective at the genes.
func (c *Vector) Fitness() float64 {
	return c.objective(c.gen)
}

// Mutate perturbs one random coordinate.
func (c *Vector) Mutate() {
	if len(c.gen) == 0 {
		return
	}
	i := c.rng.Intn(len(c.gen))
	c.gen[i] = clamp(c.gen[i]+c.rng.NormFloat64()*c.sigma, c.bound)
}

// Crossover returns a random linear blend of both parents.
func (c *Vector) Crossover(partner evolution.Candidate) evolution.Candidate {
	p, ok := partner.(*Vector)
	if !ok {
		panic(mismatch("vector", partner))
	}
	if len(p.gen) != len(c.gen) {
		panic(evolution.NewErrorf("dimension mismatch: %d != %d", len(c.gen), len(p.gen)).
			WithOperation("crossover").
			WithComponent("candidate"))
	}

	w := c.rng.Float64()
	diff := make([]float64, len(c.gen))
	floats.SubTo(diff, p.gen, c.gen)

	child := make([]float64, len(c.gen))
	floats.AddScaledTo(child, c.gen, w, diff)
	return &Vector{gen: child, bound: c.bound, sigma: c.sigma, objective: c.objective, rng: c.rng}
}

// VectorPopulation returns size sphere candidates of the given dimension
// drawn uniformly from [-bound, bound].
func VectorPopulation(size, dimensions int, bound float64, rng *rand.Rand) []evolution.Candidate {
	return ObjectivePopulation(size, dimensions, bound, Sphere, rng)
}

// ObjectivePopulation is VectorPopulation for an arbitrary objective.
func ObjectivePopulation(size, dimensions int, bound float64, objective Objective, rng *rand.Rand) []evolution.Candidate {
	pop := make([]evolution.Candidate, size)
	gen := make([]float64, dimensions)
	for i := range pop {
		for j := range gen {
			gen[j] = (rng.Float64()*2 - 1) * bound
		}
		pop[i] = NewObjectiveVector(gen, bound, objective, rng)
	}
	return pop
}

func clamp(v, bound float64) float64 {
	return math.Max(-bound, math.Min(v, bound))
}
