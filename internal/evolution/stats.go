package evolution

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GenerationStats summarizes the fitness of one sorted generation.
type GenerationStats struct {
	Iteration int     `json:"iteration"`
	Size      int     `json:"size"`
	Best      float64 `json:"best"`
	Worst     float64 `json:"worst"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Sum       float64 `json:"sum"`
}

// computeStats expects population sorted by ascending fitness.
func computeStats(iteration int, population []Candidate) GenerationStats {
	s := GenerationStats{
		Iteration: iteration,
		Size:      len(population),
	}
	if len(population) == 0 {
		return s
	}

	values := Fitnesses(population)
	s.Best = values[0]
	s.Worst = values[len(values)-1]
	s.Sum = floats.Sum(values)
	s.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		s.StdDev = stat.StdDev(values, nil)
	}
	return s
}

// Fitnesses evaluates every candidate of population in order.
func Fitnesses(population []Candidate) []float64 {
	values := make([]float64, len(population))
	for i, c := range population {
		values[i] = c.Fitness()
	}
	return values
}
