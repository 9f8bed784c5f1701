// Package evolution implements a domain-agnostic evolutionary optimizer.
//
// Callers supply the genetic representation by implementing Candidate. The
// Engine ranks a population by fitness, keeps the elites, injects some
// diversity from the remainder, mutates part of the survivors and breeds
// children until the next generation is full. Lower fitness is better.
package evolution

import (
	"fmt"
	"sort"
)

// Candidate is a single genetic individual of a population.
type Candidate interface {
	// Gen returns the genetic payload. The engine never inspects it.
	Gen() any

	// Fitness scores the candidate. Lower values are better. It must be
	// safe to call repeatedly and must not change the candidate.
	Fitness() float64

	// Mutate perturbs the genetic payload in place.
	Mutate()

	// Crossover returns a new child combining the traits of the receiver
	// and partner. Neither parent may be modified.
	Crossover(partner Candidate) Candidate
}

// Unimplemented can be embedded by candidate variants that do not provide
// every capability yet. Each method panics with an error wrapping
// ErrUnimplemented. The engine does not recover from these panics.
type Unimplemented struct{}

// Gen panics with ErrUnimplemented.
func (Unimplemented) Gen() any {
	panic(unimplemented("gen"))
}

// Fitness panics with ErrUnimplemented.
func (Unimplemented) Fitness() float64 {
	panic(unimplemented("fitness"))
}

// Mutate panics with ErrUnimplemented.
func (Unimplemented) Mutate() {
	panic(unimplemented("mutate"))
}

// Crossover panics with ErrUnimplemented.
func (Unimplemented) Crossover(Candidate) Candidate {
	panic(unimplemented("crossover"))
}

func unimplemented(capability string) error {
	return WrapErrorf(ErrUnimplemented, "capability %q not provided", capability).
		WithComponent("candidate")
}

// SortPopulation sorts the population in place by ascending fitness.
// Candidates with equal fitness keep their relative order.
func SortPopulation(population []Candidate) {
	sort.SliceStable(population, func(i, j int) bool {
		return population[i].Fitness() < population[j].Fitness()
	})
}

// String renders a candidate for log output.
func String(c Candidate) string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v (fitness=%g)", c.Gen(), c.Fitness())
}
