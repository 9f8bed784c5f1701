package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/darwin/internal/evolution"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Database struct {
		// Type is "memory" or "sqlite".
		Type string `env:"DB_TYPE" envDefault:"memory"`
		DSN  string `env:"DB_DSN"`
	}
	Evolution Evolution
}

// Evolution holds the defaults applied to runs that do not override them.
type Evolution struct {
	Cutoff             float64 `env:"EVO_CUTOFF" envDefault:"0.2"`
	Diversity          float64 `env:"EVO_DIVERSITY" envDefault:"0.1"`
	MutateRate         float64 `env:"EVO_MUTATE_RATE" envDefault:"0.1"`
	Growth             float64 `env:"EVO_GROWTH" envDefault:"1.0"`
	MaxRuns            int     `env:"EVO_MAX_RUNS" envDefault:"100"`
	PopulationSize     int     `env:"EVO_POPULATION_SIZE" envDefault:"50"`
	Seed               int64   `env:"EVO_SEED" envDefault:"0"`
	MaxConcurrentRuns  int     `env:"EVO_MAX_CONCURRENT_RUNS" envDefault:"4"`
	MaxPopulationSize  int     `env:"EVO_MAX_POPULATION_SIZE" envDefault:"10000"`
	MaxIterationsLimit int     `env:"EVO_MAX_ITERATIONS_LIMIT" envDefault:"100000"`
}

// EngineConfig returns the selection settings for the evolution engine.
func (e Evolution) EngineConfig() evolution.Config {
	return evolution.Config{
		Cutoff:     e.Cutoff,
		Diversity:  e.Diversity,
		MutateRate: e.MutateRate,
		Growth:     e.Growth,
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Logging.Level == "" {
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "info"
		}
	}

	cfg.Database.Type = strings.ToLower(cfg.Database.Type)
	if cfg.Database.Type == "sqlite" && cfg.Database.DSN == "" {
		if err := os.MkdirAll("data", 0o755); err != nil {
			return nil, err
		}
		cfg.Database.DSN = filepath.Join("data", "darwin.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that env parsing cannot.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Type) {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.Database.Type)
	}
	if err := c.Evolution.EngineConfig().Validate(); err != nil {
		return err
	}
	if c.Evolution.MaxRuns < 0 {
		return fmt.Errorf("EVO_MAX_RUNS must not be negative, got %d", c.Evolution.MaxRuns)
	}
	if c.Evolution.PopulationSize < 1 {
		return fmt.Errorf("EVO_POPULATION_SIZE must be positive, got %d", c.Evolution.PopulationSize)
	}
	if c.Evolution.MaxConcurrentRuns < 1 {
		return fmt.Errorf("EVO_MAX_CONCURRENT_RUNS must be positive, got %d", c.Evolution.MaxConcurrentRuns)
	}

	// Defaults must satisfy the limits applied to requests.
	evo := c.Evolution
	if evo.MaxPopulationSize > 0 && evo.PopulationSize > evo.MaxPopulationSize {
		return fmt.Errorf("EVO_POPULATION_SIZE %d exceeds EVO_MAX_POPULATION_SIZE %d", evo.PopulationSize, evo.MaxPopulationSize)
	}
	if evo.MaxIterationsLimit > 0 && evo.MaxRuns > evo.MaxIterationsLimit {
		return fmt.Errorf("EVO_MAX_RUNS %d exceeds EVO_MAX_ITERATIONS_LIMIT %d", evo.MaxRuns, evo.MaxIterationsLimit)
	}
	if evo.MaxPopulationSize > 0 && evo.EngineConfig().SizeBound(evo.PopulationSize, evo.MaxRuns+1) > float64(evo.MaxPopulationSize) {
		return fmt.Errorf("EVO_GROWTH %v over %d generations would exceed EVO_MAX_POPULATION_SIZE %d",
			evo.Growth, evo.MaxRuns+1, evo.MaxPopulationSize)
	}
	return nil
}
