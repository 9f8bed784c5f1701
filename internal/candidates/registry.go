package candidates

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/copyleftdev/darwin/internal/evolution"
)

// Params holds variant specific population settings as decoded from JSON.
type Params map[string]any

// Float returns the numeric parameter key or def if it is absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("parameter %q must be a number, got %T", key, v)
	}
}

// Int returns the integral parameter key or def if it is absent.
func (p Params) Int(key string, def int) (int, error) {
	f, err := p.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("parameter %q must be an integer, got %v", key, f)
	}
	return int(f), nil
}

// String returns the string parameter key or def if it is absent.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T", key, v)
	}
	return s, nil
}

// Generator builds an initial population of a variant.
type Generator func(size int, params Params, rng *rand.Rand) ([]evolution.Candidate, error)

var generators = map[string]Generator{
	"integer": generateIntegers,
	"vector":  generateVectors,
	"text":    generateTexts,
}

// Kinds lists the registered variant names.
func Kinds() []string {
	kinds := make([]string, 0, len(generators))
	for k := range generators {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// NewPopulation builds size candidates of the named kind.
func NewPopulation(kind string, size int, params Params, rng *rand.Rand) ([]evolution.Candidate, error) {
	gen, ok := generators[kind]
	if !ok {
		return nil, fmt.Errorf("unknown candidate kind %q, expected one of %v", kind, Kinds())
	}
	if size < 1 {
		return nil, fmt.Errorf("population size must be positive, got %d", size)
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	return gen(size, params, rng)
}

func generateIntegers(size int, params Params, rng *rand.Rand) ([]evolution.Candidate, error) {
	upper, err := params.Int("max", 100)
	if err != nil {
		return nil, err
	}
	target, err := params.Int("target", upper/2)
	if err != nil {
		return nil, err
	}
	if upper < 0 || target < 0 || target > upper {
		return nil, fmt.Errorf("target %d must be within [0, %d]", target, upper)
	}
	return IntegerPopulation(size, target, upper, rng), nil
}

func generateVectors(size int, params Params, rng *rand.Rand) ([]evolution.Candidate, error) {
	dims, err := params.Int("dimensions", 2)
	if err != nil {
		return nil, err
	}
	bound, err := params.Float("bound", 5)
	if err != nil {
		return nil, err
	}
	if dims < 1 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dims)
	}
	if bound <= 0 {
		return nil, fmt.Errorf("bound must be positive, got %v", bound)
	}
	name, err := params.String("objective", "sphere")
	if err != nil {
		return nil, err
	}
	objective, err := ObjectiveByName(name)
	if err != nil {
		return nil, err
	}
	return ObjectivePopulation(size, dims, bound, objective, rng), nil
}

func generateTexts(size int, params Params, rng *rand.Rand) ([]evolution.Candidate, error) {
	target, err := params.String("target", "hello world")
	if err != nil {
		return nil, err
	}
	if target == "" {
		return nil, fmt.Errorf("target must not be empty")
	}
	for i := 0; i < len(target); i++ {
		if strings.IndexByte(Alphabet, target[i]) < 0 {
			return nil, fmt.Errorf("target character %q is outside the alphabet", target[i])
		}
	}
	return TextPopulation(size, target, rng), nil
}

func mismatch(kind string, partner evolution.Candidate) error {
	return evolution.NewErrorf("cannot cross %s candidate with %T", kind, partner).
		WithOperation("crossover").
		WithComponent("candidate")
}
