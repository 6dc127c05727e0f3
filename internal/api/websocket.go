package api

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/unalkalkan/narrated-video-pipeline/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Stream handles WS /api/v1/novels/{task_id}/ws: subscribes to the
// Progress Bus for taskID, pushes the current latest record immediately
// (delivered by Subscribe itself), then every subsequent publish. The
// connection closes once a terminal record has been sent or the client
// disconnects.
func (h *NovelHandler) Stream(w http.ResponseWriter, r *http.Request, taskID string) {
	if _, ok := h.tasks.Get(taskID); !ok {
		respondError(w, "task not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed for task %s: %v", taskID, err)
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(taskID)
	defer h.bus.Unsubscribe(sub)

	// Drain (and discard) any client-sent text so the read side doesn't
	// block the connection's keepalive/close detection.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case rec, ok := <-sub.C():
			if !ok {
				return
			}
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
			if isTerminal(rec) {
				return
			}
		case <-clientGone:
			return
		}
	}
}

func isTerminal(rec types.ProgressRecord) bool {
	switch rec.Status {
	case types.TaskCompleted, types.TaskFailed, types.TaskCancelled:
		return true
	default:
		return false
	}
}
