package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/copyleftdev/darwin/internal/errors"
	"github.com/copyleftdev/darwin/internal/store"
)

var errRunNotFound = apperrors.New("run not found")

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// RegisterRoutes mounts the REST API under /api/v1 and JSON-RPC on /rpc.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleStart)
		r.Get("/runs", s.handleList)
		r.Get("/runs/{id}", s.handleStatus)
		r.Delete("/runs/{id}", s.handleCancel)
	})

	r.Post("/rpc", s.handleJSONRPC)
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

// rpcError pairs an error with the JSON-RPC code it maps to.
type rpcError struct {
	code int
	err  error
}

func (e *rpcError) Error() string { return e.err.Error() }
func (e *rpcError) Unwrap() error { return e.err }

func invalidParams(err error) error {
	return &rpcError{code: codeInvalidParams, err: err}
}

// handleJSONRPC serves evolution.start, evolution.status, evolution.cancel
// and evolution.list.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil, nil)
		return
	}
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID, nil)
		return
	}

	var (
		result interface{}
		err    error
	)
	switch request.Method {
	case "evolution.start":
		result, err = s.rpcStart(request.Params)
	case "evolution.status":
		result, err = s.rpcStatus(r.Context(), request.Params)
	case "evolution.cancel":
		result, err = s.rpcCancel(request.Params)
	case "evolution.list":
		result, err = s.listRuns(r.Context())
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID, nil)
		return
	}

	if err != nil {
		var re *rpcError
		if apperrors.As(err, &re) {
			s.respondWithError(w, re.code, "Invalid params", request.ID, re.err.Error())
			return
		}
		s.respondWithError(w, codeServerError, "Server error", request.ID, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

func firstParam(params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return invalidParams(apperrors.New("missing required parameters"))
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return invalidParams(fmt.Errorf("invalid parameter format: %w", err))
	}
	return nil
}

type runIDParams struct {
	RunID string `json:"run_id"`
}

func runIDFrom(params []json.RawMessage) (string, error) {
	var p runIDParams
	if err := firstParam(params, &p); err != nil {
		return "", err
	}
	if p.RunID == "" {
		return "", invalidParams(apperrors.New("run_id is required"))
	}
	return p.RunID, nil
}

func (s *Server) rpcStart(params []json.RawMessage) (interface{}, error) {
	var req RunRequest
	if err := firstParam(params, &req); err != nil {
		return nil, err
	}
	state, err := s.StartRun(req)
	if err != nil {
		return nil, invalidParams(err)
	}
	return startResponse(state), nil
}

func (s *Server) rpcStatus(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	id, err := runIDFrom(params)
	if err != nil {
		return nil, err
	}
	return s.status(ctx, id)
}

func (s *Server) rpcCancel(params []json.RawMessage) (interface{}, error) {
	id, err := runIDFrom(params)
	if err != nil {
		return nil, err
	}
	if err := s.CancelRun(id); err != nil {
		return nil, err
	}
	return map[string]string{"run_id": id, "status": StatusCancelled}, nil
}

func startResponse(state RunState) map[string]interface{} {
	return map[string]interface{}{
		"run_id": state.ID,
		"status": state.Status,
		"seed":   state.Seed,
	}
}

// status reports a live run, falling back to the store for runs started by
// an earlier process.
func (s *Server) status(ctx context.Context, id string) (map[string]interface{}, error) {
	if state, ok := s.Run(id); ok {
		return stateResponse(state), nil
	}

	rec, ok, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errRunNotFound
	}
	return recordResponse(rec), nil
}

func stateResponse(state RunState) map[string]interface{} {
	response := map[string]interface{}{
		"run_id":          state.ID,
		"kind":            state.Kind,
		"status":          state.Status,
		"iteration":       state.Iteration,
		"max_runs":        state.MaxRuns,
		"population_size": state.PopulationSize,
		"seed":            state.Seed,
		"start_time":      state.StartTime.Format(time.RFC3339),
		"last_update":     state.LastUpdated.Format(time.RFC3339),
		"config": map[string]float64{
			"cutoff":      state.Engine.Cutoff,
			"diversity":   state.Engine.Diversity,
			"mutate_rate": state.Engine.MutateRate,
			"growth":      state.Engine.Growth,
		},
	}
	if state.Outcome != "" {
		response["outcome"] = state.Outcome
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.StabilizedAt >= 0 {
		response["stabilized_at"] = state.StabilizedAt
	}
	if state.Latest != nil {
		response["latest"] = state.Latest
	}
	if state.BestFitness != nil {
		response["best_solution"] = map[string]interface{}{
			"fitness": *state.BestFitness,
			"genome":  state.BestGenome,
		}
	}
	if len(state.History) > 0 {
		response["history"] = state.History
	}
	if state.Err != "" {
		response["error"] = state.Err
	}
	return response
}

func recordResponse(rec store.RunRecord) map[string]interface{} {
	response := map[string]interface{}{
		"run_id":          rec.ID,
		"kind":            rec.Kind,
		"status":          rec.Status,
		"iteration":       rec.Iterations,
		"population_size": rec.PopulationSize,
		"start_time":      rec.StartedAt.Format(time.RFC3339),
	}
	if rec.Outcome != "" {
		response["outcome"] = rec.Outcome
	}
	if !rec.FinishedAt.IsZero() {
		response["end_time"] = rec.FinishedAt.Format(time.RFC3339)
	}
	if rec.BestGenome != "" {
		response["best_solution"] = map[string]interface{}{
			"fitness": rec.BestFitness,
			"genome":  rec.BestGenome,
		}
	}
	if rec.Error != "" {
		response["error"] = rec.Error
	}
	return response
}

func (s *Server) listRuns(ctx context.Context) ([]store.RunRecord, error) {
	runs, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	return runs, nil
}

// respondWithError sends a JSON-RPC 2.0 error response.
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}, data interface{}) {
	s.logger.Warn("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	rpcErr := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if data != nil {
		rpcErr["data"] = data
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   rpcErr,
		"id":      id,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleStart handles POST /api/v1/runs.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	state, err := s.StartRun(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse(state))
}

// handleList handles GET /api/v1/runs.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	runs, err := s.listRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleStatus handles GET /api/v1/runs/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.status(r.Context(), chi.URLParam(r, "id"))
	switch {
	case apperrors.Is(err, errRunNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// handleCancel handles DELETE /api/v1/runs/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.CancelRun(id)
	switch {
	case apperrors.Is(err, errRunNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusConflict, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"run_id": id,
			"status": StatusCancelled,
		})
	}
}
