package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/kinesmooth/internal/store"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// RunSource publishes completed smoothing runs.
type RunSource interface {
	Subscribe() (<-chan *store.Run, func())
}

// runEvent is the message pushed for each completed run.
type runEvent struct {
	Type         string    `json:"type"`
	RunID        string    `json:"run_id"`
	TrajectoryID string    `json:"trajectory_id"`
	PointCount   int       `json:"point_count"`
	Residuals    []float64 `json:"residuals"`
	Warnings     int       `json:"warnings"`
	DurationMS   int64     `json:"duration_ms"`
	Timestamp    int64     `json:"timestamp"`
}

// RunStreamHandler pushes a summary of every completed run to WebSocket
// clients. ?trajectory={id} restricts a connection to one trajectory.
type RunStreamHandler struct {
	source RunSource

	closeOnce sync.Once
	done      chan struct{}
}

// NewRunStreamHandler creates a new RunStreamHandler reading from source.
func NewRunStreamHandler(source RunSource) *RunStreamHandler {
	return &RunStreamHandler{
		source: source,
		done:   make(chan struct{}),
	}
}

// Close disconnects every client.
func (h *RunStreamHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *RunStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("trajectory")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	runs, cancel := h.source.Subscribe()
	defer cancel()

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-h.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-gone:
			return
		case run, ok := <-runs:
			if !ok {
				return
			}
			if filter != "" && run.TrajectoryID != filter {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toRunEvent(run)); err != nil {
				log.Printf("websocket write error: %v", err)
				return
			}
		}
	}
}

func toRunEvent(run *store.Run) runEvent {
	residuals := run.Residuals
	if residuals == nil {
		residuals = []float64{}
	}
	return runEvent{
		Type:         "run",
		RunID:        run.ID,
		TrajectoryID: run.TrajectoryID,
		PointCount:   len(run.Points),
		Residuals:    residuals,
		Warnings:     run.Warnings,
		DurationMS:   run.Duration.Milliseconds(),
		Timestamp:    run.CreatedAt.UnixMilli(),
	}
}
