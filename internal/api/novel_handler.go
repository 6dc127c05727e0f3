// Package api implements the Intake API (C10): submission, polling and
// streaming endpoints over the Pipeline Orchestrator, Task Registry and
// Progress Bus.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/unalkalkan/narrated-video-pipeline/internal/pipeline"
	"github.com/unalkalkan/narrated-video-pipeline/internal/progressbus"
	"github.com/unalkalkan/narrated-video-pipeline/internal/task"
)

const (
	minNovelTextLength = 100
	maxNovelTextLength = 100000
)

// NovelHandler handles the novel-to-video submission, polling and
// streaming endpoints.
type NovelHandler struct {
	orchestrator *pipeline.Orchestrator
	tasks        *task.Registry
	bus          *progressbus.Bus
}

// NewNovelHandler constructs a NovelHandler bound to the orchestrator,
// task registry and progress bus it fronts.
func NewNovelHandler(orchestrator *pipeline.Orchestrator, tasks *task.Registry, bus *progressbus.Bus) *NovelHandler {
	return &NovelHandler{orchestrator: orchestrator, tasks: tasks, bus: bus}
}

// uploadRequest is the JSON body accepted by POST /api/v1/novels/upload.
type uploadRequest struct {
	Text string `json:"novel_text"`
	Mode string `json:"mode"`
}

// uploadResponse is returned synchronously once the task is accepted.
type uploadResponse struct {
	TaskID    string    `json:"task_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Upload handles POST /api/v1/novels/upload: validates the request,
// creates a task, spawns the orchestrator in the background, and responds
// 202 immediately without waiting for any stage to run.
func (h *NovelHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusUnprocessableEntity)
		return
	}

	if n := len([]rune(req.Text)); n < minNovelTextLength || n > maxNovelTextLength {
		respondError(w, "text must be between 100 and 100000 characters", http.StatusUnprocessableEntity)
		return
	}
	if req.Mode != "simple" && req.Mode != "enhanced" {
		respondError(w, "mode must be 'simple' or 'enhanced'", http.StatusUnprocessableEntity)
		return
	}

	taskID := uuid.NewString()
	t := h.tasks.Create(taskID)
	h.orchestrator.Submit(taskID, req.Text, req.Mode)

	respondJSON(w, uploadResponse{
		TaskID:    taskID,
		Status:    string(t.Status),
		Message:   "novel accepted for processing",
		CreatedAt: t.CreatedAt,
	}, http.StatusAccepted)
}

// progressResponse is the polling response body.
type progressResponse struct {
	TaskID    string      `json:"task_id"`
	Status    string      `json:"status"`
	Stage     string      `json:"stage,omitempty"`
	Progress  int         `json:"progress"`
	Message   string      `json:"message,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Progress handles GET /api/v1/novels/{task_id}/progress: 404 if the task
// was never created or has been evicted, otherwise the latest known
// progress merged with the task's terminal outcome, if any.
func (h *NovelHandler) Progress(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodGet {
		respondError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	t, ok := h.tasks.Get(taskID)
	if !ok {
		respondError(w, "task not found", http.StatusNotFound)
		return
	}

	resp := progressResponse{
		TaskID:    taskID,
		Status:    string(t.Status),
		Stage:     t.Stage,
		CreatedAt: t.CreatedAt,
		Error:     t.Error,
	}
	if t.Result != nil {
		resp.Result = t.Result
	}

	if latest := h.bus.Latest(taskID); latest != nil {
		resp.Progress = latest.Progress
		resp.Message = latest.Message
		if latest.Stage != "" {
			resp.Stage = latest.Stage
		}
		if latest.Result != nil {
			resp.Result = latest.Result
		}
	}

	respondJSON(w, resp, http.StatusOK)
}

// Cancel handles POST /api/v1/novels/{task_id}/cancel.
func (h *NovelHandler) Cancel(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodPost {
		respondError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := h.tasks.Get(taskID); !ok {
		respondError(w, "task not found", http.StatusNotFound)
		return
	}
	h.orchestrator.Cancel(taskID)
	respondJSON(w, map[string]string{"task_id": taskID, "status": "cancelling"}, http.StatusAccepted)
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("respondJSON: failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
