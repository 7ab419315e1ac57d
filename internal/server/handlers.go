package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/copyleftdev/scrytest/internal/actions"
	"github.com/copyleftdev/scrytest/internal/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type APIHandler struct {
	taskManager *tasks.Manager
	registry    *actions.Registry
	logger      *zap.Logger
}

func NewAPIHandler(tm *tasks.Manager, registry *actions.Registry, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		taskManager: tm,
		registry:    registry,
		logger:      logger,
	}
}

type SubmitRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type ActionInfo struct {
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Retryable   bool   `json:"retryable"`
	Description string `json:"description,omitempty"`
}

// HandleSubmitRun queues a run. An empty body runs the configured defaults.
func (h *APIHandler) HandleSubmitRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req tasks.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: %v", err)
		return
	}

	task, err := h.taskManager.Submit(req, tasks.TriggerAPI)
	if err != nil {
		if errors.Is(err, tasks.ErrShuttingDown) {
			h.respondError(w, http.StatusServiceUnavailable, "%s", err.Error())
			return
		}
		h.logger.Error("Error submitting run", zap.Error(err))
		h.respondError(w, http.StatusTooManyRequests, "Failed to submit run: %v", err)
		return
	}

	w.Header().Set("Location", "/api/v1/runs/"+task.ID.String())
	h.respondJSON(w, http.StatusAccepted, SubmitRunResponse{RunID: task.ID.String(), Status: string(task.Status)})
}

func (h *APIHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runIDStr := chi.URLParam(r, "runID")
	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid run ID format: %v", err)
		return
	}

	task, err := h.taskManager.Get(runID)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			h.respondError(w, http.StatusNotFound, "Run not found")
			return
		}
		h.logger.Error("Error retrieving run", zap.String("run_id", runIDStr), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	h.respondJSON(w, http.StatusOK, task)
}

func (h *APIHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.taskManager.List())
}

// HandleGetResults returns the most recent finished run.
func (h *APIHandler) HandleGetResults(w http.ResponseWriter, r *http.Request) {
	task, ok := h.taskManager.Latest()
	if !ok {
		h.respondError(w, http.StatusNotFound, "No finished runs yet")
		return
	}
	h.respondJSON(w, http.StatusOK, task)
}

func (h *APIHandler) HandleListActions(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	out := make([]ActionInfo, 0, len(names))
	for _, name := range names {
		def, err := h.registry.Get(name)
		if err != nil {
			continue
		}
		out = append(out, ActionInfo{
			Name:        name,
			Provider:    h.registry.Provider(name),
			Retryable:   def.Retryable,
			Description: def.Description,
		})
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Error marshalling JSON response", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to marshal JSON response")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		h.logger.Warn("Error writing JSON response", zap.Error(err))
	}
}

func (h *APIHandler) respondError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	errorMessage := fmt.Sprintf(format, args...)
	jsonResponse, err := json.Marshal(map[string]string{"error": errorMessage})
	if err != nil {
		jsonResponse = []byte(`{"error":"internal error"}`)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(jsonResponse); err != nil {
		h.logger.Warn("Error writing error response", zap.Error(err))
	}
}
