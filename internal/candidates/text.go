package candidates

import (
	"math/rand"

	"github.com/copyleftdev/darwin/internal/evolution"
)

// Alphabet is the character set Text genes are drawn from.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 .,!?'-"

// Text evolves a string toward a target phrase of the same length.
type Text struct {
	gen    []byte
	target string
	rng    *rand.Rand
}

// NewText creates a Text owning a copy of gen.
func NewText(gen, target string, rng *rand.Rand) *Text {
	return &Text{gen: []byte(gen), target: target, rng: rng}
}

// Value returns the current string.
func (c *Text) Value() string { return string(c.gen) }

// Gen implements evolution.Candidate.
func (c *Text) Gen() any { return string(c.gen) }

// Fitness is the number of positions differing from the target.
func (c *Text) Fitness() float64 {
	var d int
	for i := range c.gen {
		if i >= len(c.target) || c.gen[i] != c.target[i] {
			d++
		}
	}
	if len(c.target) > len(c.gen) {
		d += len(c.target) - len(c.gen)
	}
	return float64(d)
}

// Mutate replaces one random character.
func (c *Text) Mutate() {
	if len(c.gen) == 0 {
		return
	}
	c.gen[c.rng.Intn(len(c.gen))] = Alphabet[c.rng.Intn(len(Alphabet))]
}

// Crossover returns a single point crossover of both parents.
func (c *Text) Crossover(partner evolution.Candidate) evolution.Candidate {
	p, ok := partner.(*Text)
	if !ok {
		panic(mismatch("text", partner))
	}
	n := min(len(c.gen), len(p.gen))
	point := 0
	if n > 0 {
		point = c.rng.Intn(n + 1)
	}

	child := make([]byte, 0, len(p.gen))
	child = append(child, c.gen[:point]...)
	child = append(child, p.gen[point:]...)
	return &Text{gen: child, target: c.target, rng: c.rng}
}

// TextPopulation returns size random strings as long as target.
func TextPopulation(size int, target string, rng *rand.Rand) []evolution.Candidate {
	pop := make([]evolution.Candidate, size)
	buf := make([]byte, len(target))
	for i := range pop {
		for j := range buf {
			buf[j] = Alphabet[rng.Intn(len(Alphabet))]
		}
		pop[i] = NewText(string(buf), target, rng)
	}
	return pop
}
