package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tabnet-harvester/internal/config"
	harvesterr "tabnet-harvester/internal/errors"
	"tabnet-harvester/internal/model"
	"tabnet-harvester/internal/pipeline"
	"tabnet-harvester/pkg/utils"
)

const runsPrefix = "/api/v1/runs/"

// RunStore is the part of the run store the API reads and writes
type RunStore interface {
	CreateRun(runID string, params model.RunParams) error
	ListRuns() ([]model.RunInfo, error)
	GetRun(runID string) (model.RunInfo, error)
	ListRunErrors(runID string) ([]model.ErrorRecord, error)
	ListStageProgress(runID string) ([]model.StageProgress, error)
	GetRunResult(runID string) ([]byte, error)
}

// StartFunc executes a stored run; it blocks until the run ends
type StartFunc func(ctx context.Context, runID string, params model.RunParams)

// RunsHandler serves the run API. Runs execute in the background under a
// context derived from the one the handler was created with.
type RunsHandler struct {
	store            RunStore
	start            StartFunc
	minYear, maxYear int

	base    context.Context
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunsHandler creates the handler. Cancelling ctx cancels every active run.
func NewRunsHandler(ctx context.Context, store RunStore, start StartFunc, minYear, maxYear int) *RunsHandler {
	return &RunsHandler{
		store:   store,
		start:   start,
		minYear: minYear,
		maxYear: maxYear,
		base:    ctx,
		cancels: make(map[string]context.CancelFunc),
	}
}

// CreateRunResponse is returned when a run is accepted
type CreateRunResponse struct {
	Message   string          `json:"message"`
	RunID     string          `json:"run_id"`
	Status    string          `json:"status"`
	Plan      map[string]int  `json:"plan"`
	Params    model.RunParams `json:"params"`
	ResultURL string          `json:"result_url"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateRun starts a new harvest
// @Summary Start a harvest run
// @Description Validate the run parameters, store a pending run and start it in the background
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.RunParams true "Run parameters; empty age_bands/diagnoses select all"
// @Success 202 {object} CreateRunResponse "Run accepted"
// @Failure 400 {string} string "Invalid run parameters"
// @Failure 500 {string} string "Internal server error"
// @Router /runs [post]
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var params model.RunParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	// 1. Validate payload against the code tables
	params, err := config.NormalizeParams(params, h.minYear, h.maxYear)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// 2. Generate run ID and save the run
	runID := uuid.New().String()
	if err := h.store.CreateRun(runID, params); err != nil {
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	// 3. Start the run asynchronously
	ctx, cancel := context.WithCancel(h.base)
	h.mu.Lock()
	h.cancels[runID] = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.forget(runID)
		h.start(ctx, runID, params)
	}()

	plan := make(map[string]int)
	for stage, jobs := range pipeline.Plan(params) {
		plan[string(stage)] = jobs
	}
	writeJSON(w, http.StatusAccepted, CreateRunResponse{
		Message:   "Run started",
		RunID:     runID,
		Status:    model.RunPending,
		Plan:      plan,
		Params:    params,
		ResultURL: utils.ResultURL(runID),
		CreatedAt: time.Now().UTC(),
	})
}

func (h *RunsHandler) forget(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cancel, ok := h.cancels[runID]; ok {
		cancel()
		delete(h.cancels, runID)
	}
}

// Wait blocks until every background run has returned
func (h *RunsHandler) Wait() {
	h.wg.Wait()
}

// ListRuns retrieves all runs
// @Summary List runs
// @Description Get every run with its current status, newest first
// @Tags runs
// @Produce json
// @Success 200 {array} model.RunInfo "List of runs"
// @Failure 500 {string} string "Internal server error"
// @Router /runs [get]
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun retrieves a specific run
// @Summary Get run
// @Description Retrieve the parameters and status of one run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunInfo "Run details"
// @Failure 400 {string} string "Invalid run ID"
// @Failure 404 {string} string "Run not found"
// @Router /runs/{id} [get]
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "")
	if !ok {
		return
	}

	run, err := h.store.GetRun(runID)
	if err != nil {
		storeError(w, err, "Run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// CancelRun cancels an active run
// @Summary Cancel run
// @Description Cancel a running harvest; what was aggregated so far is still exported
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 202 {object} map[string]interface{} "Cancellation requested"
// @Failure 404 {string} string "Run not found"
// @Failure 409 {string} string "Run is not active"
// @Router /runs/{id} [delete]
func (h *RunsHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "")
	if !ok {
		return
	}

	h.mu.Lock()
	cancel, active := h.cancels[runID]
	h.mu.Unlock()
	if !active {
		if _, err := h.store.GetRun(runID); err != nil {
			storeError(w, err, "Run not found")
			return
		}
		http.Error(w, "Run is not active", http.StatusConflict)
		return
	}

	cancel()
	zap.L().Info("api: run cancelled", zap.String("run_id", runID))
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Cancellation requested",
		"run_id":  runID,
	})
}

// GetRunErrors retrieves the failed jobs of a run
// @Summary Get run errors
// @Description Retrieve every job that ended without data because of a failure
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 400 {string} string "Invalid run ID"
// @Failure 500 {string} string "Internal server error"
// @Router /runs/{id}/errors [get]
func (h *RunsHandler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/errors")
	if !ok {
		return
	}

	records, err := h.store.ListRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"errors": records,
		"count":  len(records),
	})
}

// GetRunProgress retrieves stage progress for a run
// @Summary Get run progress
// @Description Retrieve the run status and the counters of every started stage
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run progress"
// @Failure 400 {string} string "Invalid run ID"
// @Failure 404 {string} string "Run not found"
// @Router /runs/{id}/progress [get]
func (h *RunsHandler) GetRunProgress(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/progress")
	if !ok {
		return
	}

	run, err := h.store.GetRun(runID)
	if err != nil {
		storeError(w, err, "Run not found")
		return
	}
	stages, err := h.store.ListStageProgress(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve progress", http.StatusInternalServerError)
		return
	}

	planned := pipeline.Plan(run.Params)
	total, done := 0, 0
	for _, jobs := range planned {
		total += jobs
	}
	for _, s := range stages {
		done += s.Terminal()
	}
	percent := 0.0
	if total > 0 {
		percent = float64(done) * 100 / float64(total)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"status":  run.Status,
		"stages":  stages,
		"done":    done,
		"total":   total,
		"percent": percent,
	})
}

// GetRunResult retrieves the result document of a finished run
// @Summary Get run result
// @Description Retrieve the merged result tree: years, regions, then per-stage branches keyed by sex
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Result document"
// @Failure 400 {string} string "Invalid run ID"
// @Failure 404 {string} string "Result not found"
// @Router /runs/{id}/result [get]
func (h *RunsHandler) GetRunResult(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r, "/result")
	if !ok {
		return
	}

	doc, err := h.store.GetRunResult(runID)
	if err != nil {
		storeError(w, err, "Result not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(doc)
}

// runIDFromPath extracts the run ID between runsPrefix and suffix
func runIDFromPath(w http.ResponseWriter, r *http.Request, suffix string) (string, bool) {
	path := r.URL.Path
	if !strings.HasPrefix(path, runsPrefix) || !strings.HasSuffix(path, suffix) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return "", false
	}

	runID := path[len(runsPrefix) : len(path)-len(suffix)]
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return "", false
	}
	return runID, true
}

func storeError(w http.ResponseWriter, err error, notFound string) {
	if harvesterr.GetCode(err) == harvesterr.CodeNotFound {
		http.Error(w, notFound, http.StatusNotFound)
		return
	}
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: failed to encode response", zap.Error(err))
	}
}
