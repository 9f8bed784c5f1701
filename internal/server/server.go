package server

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/copyleftdev/darwin/internal/candidates"
	"github.com/copyleftdev/darwin/internal/config"
	apperrors "github.com/copyleftdev/darwin/internal/errors"
	"github.com/copyleftdev/darwin/internal/evolution"
	"github.com/copyleftdev/darwin/internal/logging"
	"github.com/copyleftdev/darwin/internal/store"
)

// Logger defines the logging interface used by the server.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Run statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// maxHistory bounds the per generation statistics kept for a live run.
const maxHistory = 1000

// RunRequest describes an evolution run to start. Zero selection settings
// fall back to the configured defaults.
type RunRequest struct {
	Kind           string            `json:"kind"`
	PopulationSize int               `json:"population_size,omitempty"`
	MaxRuns        *int              `json:"max_runs,omitempty"`
	FitnessGoal    float64           `json:"fitness_goal,omitempty"`
	Stabilizer     bool              `json:"stabilizer,omitempty"`
	Tolerance      float64           `json:"tolerance,omitempty"`
	Seed           int64             `json:"seed,omitempty"`
	Cutoff         *float64          `json:"cutoff,omitempty"`
	Diversity      *float64          `json:"diversity,omitempty"`
	MutateRate     *float64          `json:"mutate_rate,omitempty"`
	Growth         *float64          `json:"growth,omitempty"`
	Params         candidates.Params `json:"params,omitempty"`
}

// RunState tracks a run owned by this process. Fields are guarded by the
// server mutex.
type RunState struct {
	ID             string
	Kind           string
	Status         string
	Outcome        evolution.Outcome
	Seed           int64
	MaxRuns        int
	PopulationSize int
	Engine         evolution.Config
	StartTime      time.Time
	EndTime        *time.Time
	LastUpdated    time.Time
	Iteration      int
	Latest         *evolution.GenerationStats
	History        []evolution.GenerationStats
	StabilizedAt   int
	BestFitness    *float64
	BestGenome     any
	Err            string
	CancelFunc     context.CancelFunc
}

func (r *RunState) terminal() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Server runs evolution jobs in the background and exposes them over HTTP
// and JSON-RPC.
type Server struct {
	cfg     *config.Config
	logger  Logger
	store   store.Store
	metrics *evolution.Metrics

	runs   map[string]*RunState
	runsMu sync.RWMutex

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewServer creates a server. metrics may be nil.
func NewServer(cfg *config.Config, logger Logger, st store.Store, metrics *evolution.Metrics) *Server {
	slots := cfg.Evolution.MaxConcurrentRuns
	if slots < 1 {
		slots = 1
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		metrics: metrics,
		runs:    make(map[string]*RunState),
		slots:   make(chan struct{}, slots),
	}
}

// job is everything a background run needs besides its state.
type job struct {
	engine     *evolution.Engine
	population []evolution.Candidate
	opts       []evolution.RunOption
}

// StartRun validates req, builds the initial population and schedules the
// run. The returned state is a snapshot.
func (s *Server) StartRun(req RunRequest) (RunState, error) {
	defaults := s.cfg.Evolution

	engineCfg := defaults.EngineConfig()
	overrideFloat(&engineCfg.Cutoff, req.Cutoff)
	overrideFloat(&engineCfg.Diversity, req.Diversity)
	overrideFloat(&engineCfg.MutateRate, req.MutateRate)
	overrideFloat(&engineCfg.Growth, req.Growth)
	if err := engineCfg.Validate(); err != nil {
		return RunState{}, err
	}

	size := req.PopulationSize
	if size == 0 {
		size = defaults.PopulationSize
	}
	if size < 1 || (defaults.MaxPopulationSize > 0 && size > defaults.MaxPopulationSize) {
		return RunState{}, apperrors.Errorf("population_size must be within [1, %d], got %d", defaults.MaxPopulationSize, size)
	}

	maxRuns := defaults.MaxRuns
	if req.MaxRuns != nil {
		maxRuns = *req.MaxRuns
	}
	if maxRuns < 0 || (defaults.MaxIterationsLimit > 0 && maxRuns > defaults.MaxIterationsLimit) {
		return RunState{}, apperrors.Errorf("max_runs must be within [0, %d], got %d", defaults.MaxIterationsLimit, maxRuns)
	}
	// Every generation may grow by the growth factor, so the limit has to
	// hold for the last one, not only for the initial population.
	if limit := defaults.MaxPopulationSize; limit > 0 && engineCfg.SizeBound(size, maxRuns+1) > float64(limit) {
		return RunState{}, apperrors.Errorf("growth %v over %d generations would exceed the population limit of %d",
			engineCfg.Growth, maxRuns+1, limit)
	}
	if req.Tolerance < 0 {
		return RunState{}, apperrors.Errorf("tolerance must not be negative, got %v", req.Tolerance)
	}

	seed := req.Seed
	if seed == 0 {
		seed = defaults.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	popRand, engineRand := runRands(seed)
	population, err := candidates.NewPopulation(req.Kind, size, req.Params, popRand)
	if err != nil {
		return RunState{}, err
	}

	id := uuid.NewString()
	runLogger := s.logger.WithFields(map[string]interface{}{
		"run_id": id,
		"kind":   req.Kind,
	})

	engine, err := evolution.NewEngine(engineCfg,
		evolution.WithRand(engineRand),
		evolution.WithLogger(logging.NewZapLogger(runLogger)),
		evolution.WithMetrics(s.metrics),
	)
	if err != nil {
		return RunState{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	state := &RunState{
		ID:             id,
		Kind:           req.Kind,
		Status:         StatusPending,
		Seed:           seed,
		MaxRuns:        maxRuns,
		PopulationSize: size,
		Engine:         engine.Config(),
		StartTime:      now,
		LastUpdated:    now,
		StabilizedAt:   -1,
		CancelFunc:     cancel,
	}

	j := job{
		engine:     engine,
		population: population,
		opts: []evolution.RunOption{
			evolution.WithFitnessGoal(req.FitnessGoal),
			evolution.WithStabilizer(req.Stabilizer),
			evolution.WithTolerance(req.Tolerance),
			evolution.WithObserver(s.observe(state)),
		},
	}

	s.runsMu.Lock()
	s.runs[id] = state
	snapshot := *state
	s.runsMu.Unlock()

	runLogger.Info("Run scheduled", map[string]interface{}{
		"population_size": size,
		"max_runs":        maxRuns,
		"seed":            seed,
	})

	s.wg.Add(1)
	go s.runEvolution(ctx, state, j, runLogger)

	return snapshot, nil
}

// runRands returns the random sources of a run: one for the candidates and
// one for the engine's index draws, derived from it so the two streams differ.
func runRands(seed int64) (population, engine *rand.Rand) {
	population = rand.New(rand.NewSource(seed))
	engine = rand.New(rand.NewSource(population.Int63()))
	return population, engine
}

func overrideFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// observe records per generation progress of state.
func (s *Server) observe(state *RunState) func(evolution.GenerationStats) {
	return func(st evolution.GenerationStats) {
		s.runsMu.Lock()
		defer s.runsMu.Unlock()
		state.Iteration = st.Iteration
		state.Latest = &st
		state.LastUpdated = time.Now()
		if len(state.History) >= maxHistory {
			state.History = state.History[1:]
		}
		state.History = append(state.History, st)
	}
}

// runEvolution waits for a free slot, evolves the population and stores
// the outcome.
func (s *Server) runEvolution(ctx context.Context, state *RunState, j job, logger *logging.Logger) {
	defer s.wg.Done()
	defer state.CancelFunc()

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		s.finish(state, nil, ctx.Err(), logger)
		return
	}

	s.runsMu.Lock()
	if state.Status == StatusPending {
		state.Status = StatusRunning
		state.LastUpdated = time.Now()
	}
	s.runsMu.Unlock()

	var (
		res *evolution.Result
		err error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = apperrors.FromPanic(rec).WithOperation("evolve").WithComponent("server")
			}
		}()
		res, err = j.engine.Evolve(ctx, j.population, state.MaxRuns, j.opts...)
	}()

	s.finish(state, res, err, logger)
}

// finish moves state to its terminal status and persists it.
func (s *Server) finish(state *RunState, res *evolution.Result, runErr error, logger *logging.Logger) {
	s.runsMu.Lock()
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	if res != nil {
		state.Outcome = res.Outcome
		state.Iteration = res.Iterations
		state.StabilizedAt = res.StabilizedAt
		if best := res.Best(); best != nil {
			f := best.Fitness()
			state.BestFitness = &f
			state.BestGenome = best.Gen()
		}
	}

	switch {
	case state.Status == StatusCancelled:
	case runErr != nil && ctxErr(runErr):
		state.Status = StatusCancelled
	case runErr != nil:
		state.Status = StatusFailed
		state.Err = runErr.Error()
	default:
		state.Status = StatusCompleted
	}
	if state.Status == StatusCancelled && state.Outcome == "" {
		state.Outcome = evolution.Cancelled
	}
	rec := recordOf(state)
	hasBest := state.BestFitness != nil
	s.runsMu.Unlock()

	fields := map[string]interface{}{
		"status":     rec.Status,
		"outcome":    rec.Outcome,
		"iterations": rec.Iterations,
	}
	if hasBest {
		fields["best_fitness"] = rec.BestFitness
	}
	if rec.Status == StatusFailed {
		logger.Error("Run failed", map[string]interface{}{"error": rec.Error})
	} else {
		logger.Info("Run finished", fields)
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.SaveRun(saveCtx, rec); err != nil {
		logger.Error("Failed to save run", map[string]interface{}{
			"error": apperrors.Wrapf(err, "save run %s", rec.ID).WithComponent("store").Error(),
		})
	}
}

func ctxErr(err error) bool {
	return apperrors.Is(err, context.Canceled) || apperrors.Is(err, context.DeadlineExceeded)
}

func recordOf(state *RunState) store.RunRecord {
	rec := store.RunRecord{
		ID:             state.ID,
		Kind:           state.Kind,
		Status:         state.Status,
		Outcome:        string(state.Outcome),
		Iterations:     state.Iteration,
		PopulationSize: state.PopulationSize,
		StartedAt:      state.StartTime,
		Error:          state.Err,
	}
	if state.EndTime != nil {
		rec.FinishedAt = *state.EndTime
	}
	if state.BestFitness != nil {
		rec.BestFitness = *state.BestFitness
		rec.BestGenome = fmt.Sprint(state.BestGenome)
	}
	return rec
}

// Run returns a snapshot of a run known to this process.
func (s *Server) Run(id string) (RunState, bool) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()
	state, ok := s.runs[id]
	if !ok {
		return RunState{}, false
	}
	snapshot := *state
	snapshot.History = append([]evolution.GenerationStats(nil), state.History...)
	return snapshot, true
}

// CancelRun stops a pending or running run.
func (s *Server) CancelRun(id string) error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	state, ok := s.runs[id]
	if !ok {
		return errRunNotFound
	}
	if state.terminal() {
		return apperrors.Errorf("cannot cancel run with status: %s", state.Status)
	}

	state.CancelFunc()
	state.Status = StatusCancelled
	state.LastUpdated = time.Now()

	s.logger.Info("Run cancelled", map[string]interface{}{"run_id": id})
	return nil
}

// Wait blocks until all background runs have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Close cancels all runs, waits for them and closes the store.
func (s *Server) Close() error {
	s.runsMu.Lock()
	for _, run := range s.runs {
		if !run.terminal() {
			run.CancelFunc()
		}
	}
	s.runsMu.Unlock()

	s.wg.Wait()
	return s.store.Close()
}
