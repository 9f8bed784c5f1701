package evolution

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes engine activity as Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	generations    prometheus.Counter
	runs           *prometheus.CounterVec
	bestFitness    prometheus.Gauge
	populationSize prometheus.Gauge
	stepDuration   prometheus.Histogram
}

// NewMetrics creates the engine collectors and registers them with reg.
// Passing a nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "darwin",
			Name:      "generations_total",
			Help:      "Number of generations produced by the darwin step.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "darwin",
			Name:      "runs_total",
			Help:      "Finished evolution runs by outcome.",
		}, []string{"outcome"}),
		bestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "darwin",
			Name:      "best_fitness",
			Help:      "Best fitness of the most recent generation.",
		}),
		populationSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "darwin",
			Name:      "population_size",
			Help:      "Size of the most recent generation.",
		}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "darwin",
			Name:      "step_duration_seconds",
			Help:      "Time spent in a single darwin step.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			m.adopt(are.ExistingCollector)
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.generations, m.runs, m.bestFitness, m.populationSize, m.stepDuration}
}

// adopt reuses a collector registered by an earlier NewMetrics call.
func (m *Metrics) adopt(existing prometheus.Collector) {
	switch c := existing.(type) {
	case *prometheus.CounterVec:
		m.runs = c
	case prometheus.Histogram:
		m.stepDuration = c
	case prometheus.Gauge:
		// A gauge also satisfies Counter, so it has to be matched first.
		if c.Desc().String() == m.bestFitness.Desc().String() {
			m.bestFitness = c
		} else {
			m.populationSize = c
		}
	case prometheus.Counter:
		m.generations = c
	}
}

func (m *Metrics) observeStep(d time.Duration, size int) {
	if m == nil {
		return
	}
	m.stepDuration.Observe(d.Seconds())
	m.populationSize.Set(float64(size))
}

func (m *Metrics) observeGeneration(s GenerationStats) {
	if m == nil {
		return
	}
	m.generations.Inc()
	if s.Size > 0 {
		m.bestFitness.Set(s.Best)
	}
}

func (m *Metrics) observeRun(r *Result) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(r.Outcome)).Inc()
}
