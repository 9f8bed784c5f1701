package candidates

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Objective scores a point. Lower is better and every objective has its
// global minimum of 0 inside the search box.
type Objective func(x []float64) float64

var objectives = map[string]Objective{
	"sphere":     Sphere,
	"rosenbrock": Rosenbrock,
	"rastrigin":  Rastrigin,
}

// Sphere is sum(x_i^2), minimal at the origin.
func Sphere(x []float64) float64 {
	return floats.Dot(x, x)
}

// Rosenbrock is the banana valley function, minimal at (1, ..., 1).
func Rosenbrock(x []float64) float64 {
	var sum float64
	for i := 0; i+1 < len(x); i++ {
		a := 1 - x[i]
		b := x[i+1] - x[i]*x[i]
		sum += a*a + 100*b*b
	}
	return sum
}

// Rastrigin is a highly multimodal function, minimal at the origin.
func Rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

// ObjectiveNames lists the registered objectives.
func ObjectiveNames() []string {
	names := make([]string, 0, len(objectives))
	for k := range objectives {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ObjectiveByName looks up a registered objective.
func ObjectiveByName(name string) (Objective, error) {
	obj, ok := objectives[name]
	if !ok {
		return nil, fmt.Errorf("unknown objective %q, expected one of %v", name, ObjectiveNames())
	}
	return obj, nil
}
