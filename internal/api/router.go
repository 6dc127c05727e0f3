package api

import (
	"net/http"
	"strings"
)

// Routes registers the novel intake endpoints on mux, following the
// teacher's manual-suffix-routing style: one catch-all prefix handler
// dispatches on the trailing path segment.
func Routes(mux *http.ServeMux, h *NovelHandler) {
	mux.HandleFunc("/api/v1/novels/upload", h.Upload)
	mux.HandleFunc("/api/v1/novels/", func(w http.ResponseWriter, r *http.Request) {
		taskID, action, ok := splitTaskPath(r.URL.Path)
		if !ok {
			respondError(w, "not found", http.StatusNotFound)
			return
		}
		switch action {
		case "progress":
			h.Progress(w, r, taskID)
		case "ws":
			h.Stream(w, r, taskID)
		case "cancel":
			h.Cancel(w, r, taskID)
		default:
			respondError(w, "not found", http.StatusNotFound)
		}
	})
}

// splitTaskPath extracts {task_id} and the trailing action from
// "/api/v1/novels/{task_id}/{action}".
func splitTaskPath(path string) (taskID, action string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/api/v1/novels/")
	if trimmed == path {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
