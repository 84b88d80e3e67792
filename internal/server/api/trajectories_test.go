package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/ayusman/kinesmooth/internal/store"
)

func TestTrajectoryHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewTrajectoryHandler(s, nil)

	createTrajectory(t, s, "first", circle(10))

	rec := doJSON(t, handler, http.MethodGet, "/api/trajectories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listTrajectoriesResponse
	decodeBody(t, rec, &response)

	if len(response.Trajectories) != 1 {
		t.Fatalf("expected 1 trajectory, got %d", len(response.Trajectories))
	}
	got := response.Trajectories[0]
	if got.ID != "first" || got.Dimensions != 2 || got.PointCount != 10 {
		t.Errorf("unexpected trajectory %+v", got)
	}
	if got.Points != nil {
		t.Error("list should not include points")
	}
}

func TestTrajectoryHandler_ListEmpty(t *testing.T) {
	s := newTestStore(t)
	handler := NewTrajectoryHandler(s, nil)

	rec := doJSON(t, handler, http.MethodGet, "/api/trajectories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body := rec.Body.String(); body != "{\"trajectories\":[]}\n" {
		t.Errorf("expected empty array, got %s", body)
	}
}

func TestTrajectoryHandler_Create(t *testing.T) {
	s := newTestStore(t)
	handler := NewTrajectoryHandler(s, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/trajectories", createTrajectoryRequest{
		Name:   "wave",
		Points: circle(12),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var response trajectoryResponse
	decodeBody(t, rec, &response)

	if response.ID == "" {
		t.Error("expected generated ID")
	}
	if response.Name != "wave" || response.Dimensions != 2 || response.PointCount != 12 {
		t.Errorf("unexpected response %+v", response)
	}

	points, err := s.Trajectories().GetPoints(response.ID)
	if err != nil {
		t.Fatalf("failed to get points: %v", err)
	}
	if len(points) != 12 {
		t.Errorf("expected 12 stored points, got %d", len(points))
	}
}

func TestTrajectoryHandler_CreateWithoutPoints(t *testing.T) {
	s := newTestStore(t)
	handler := NewTrajectoryHandler(s, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/trajectories", createTrajectoryRequest{Name: "empty"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}

	var response trajectoryResponse
	decodeBody(t, rec, &response)
	if response.PointCount != 0 {
		t.Errorf("expected 0 points, got %d", response.PointCount)
	}
}

func TestTrajectoryHandler_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing name", createTrajectoryRequest{Points: circle(5)}, http.StatusBadRequest},
		{"ragged points", createTrajectoryRequest{Name: "r", Points: [][]float64{{1, 2}, {3}}}, http.StatusBadRequest},
		{"zero width", createTrajectoryRequest{Name: "z", Points: [][]float64{{}, {}}}, http.StatusBadRequest},
		{"empty points", createTrajectoryRequest{Name: "e", Points: [][]float64{}}, http.StatusBadRequest},
		{"invalid json", "not an object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			handler := NewTrajectoryHandler(s, nil)

			rec := doJSON(t, handler, http.MethodPost, "/api/trajectories", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestTrajectoryHandler_CreateDuplicateName(t *testing.T) {
	s := newTestStore(t)
	handler := NewTrajectoryHandler(s, nil)

	createTrajectory(t, s, "taken", nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/trajectories", createTrajectoryRequest{Name: "taken"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestTrajectoryHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewTrajectoryHandler(s, nil)

	createTrajectory(t, s, "loop", circle(8))

	rec := doJSON(t, handler, http.MethodGet, "/api/trajectories/loop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response trajectoryResponse
	decodeBody(t, rec, &response)
	if len(response.Points) != 8 {
		t.Errorf("expected 8 points, got %d", len(response.Points))
	}
}

func TestTrajectoryHandler_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	handler := NewTrajectoryHandler(s, nil)

	rec := doJSON(t, handler, http.MethodGet, "/api/trajectories/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestTrajectoryHandler_UnknownSubpath(t *testing.T) {
	s := newTestStore(t)
	handler := NewTrajectoryHandler(s, nil)

	createTrajectory(t, s, "loop", nil)

	rec := doJSON(t, handler, http.MethodGet, "/api/trajectories/loop/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestTrajectoryHandler_Update(t *testing.T) {
	s := newTestStore(t)
	cache := NewRunCache(time.Minute)
	handler := NewTrajectoryHandler(s, cache)

	createTrajectory(t, s, "loop", circle(8))
	cache.Set(&store.Run{ID: "r1", TrajectoryID: "loop"})

	rec := doJSON(t, handler, http.MethodPut, "/api/trajectories/loop", updateTrajectoryRequest{
		Name:   "renamed",
		Points: [][]float64{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response trajectoryResponse
	decodeBody(t, rec, &response)
	if response.Name != "renamed" {
		t.Errorf("expected name renamed, got %s", response.Name)
	}
	if response.Dimensions != 3 || response.PointCount != 3 {
		t.Errorf("expected 3 points of 3 dimensions, got %d of %d", response.PointCount, response.Dimensions)
	}

	if _, ok := cache.Get("loop"); ok {
		t.Error("update should invalidate the cached run")
	}
}

func TestTrajectoryHandler_UpdateNotFound(t *testing.T) {
	s := newTestStore(t)
	handler := NewTrajectoryHandler(s, nil)

	rec := doJSON(t, handler, http.MethodPut, "/api/trajectories/missing", updateTrajectoryRequest{Name: "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestTrajectoryHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	cache := NewRunCache(time.Minute)
	handler := NewTrajectoryHandler(s, cache)

	createTrajectory(t, s, "loop", circle(8))
	cache.Set(&store.Run{ID: "r1", TrajectoryID: "loop"})

	rec := doJSON(t, handler, http.MethodDelete, "/api/trajectories/loop", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	if _, err := s.Trajectories().GetByID("loop"); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, ok := cache.Get("loop"); ok {
		t.Error("delete should invalidate the cached run")
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/trajectories/loop", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d on second delete, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestTrajectoryHandler_MethodNotAllowed(t *testing.T) {
	s := newTestStore(t)
	handler := NewTrajectoryHandler(s, nil)

	rec := doJSON(t, handler, http.MethodPatch, "/api/trajectories", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
