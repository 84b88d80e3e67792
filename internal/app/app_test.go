package app

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ayusman/kinesmooth/internal/config"
	"github.com/ayusman/kinesmooth/internal/smoothing"
	"github.com/ayusman/kinesmooth/internal/store"
)

func intPtr(v int) *int { return &v }

// newTestApp creates an App backed by a temp store holding one 3D helix
// trajectory with id "helix".
func newTestApp(t *testing.T, pluginDir string) (*App, *store.Store) {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Trajectories().Create(&store.Trajectory{ID: "helix", Name: "helix"}); err != nil {
		t.Fatalf("failed to create trajectory: %v", err)
	}
	points := make([][]float64, 80)
	for i := range points {
		a := float64(i) / 10
		points[i] = []float64{math.Cos(a), math.Sin(a), a / 4}
	}
	if err := s.Trajectories().SetPoints("helix", points); err != nil {
		t.Fatalf("failed to set points: %v", err)
	}

	seed := uint64(1)
	cfg := config.DefaultSmoothingConfig()
	cfg.CoefficientCount = intPtr(12)
	cfg.SampleCount = intPtr(40)
	cfg.Seed = &seed
	cfg.Workers = intPtr(1)

	a := New(Config{Store: s, PluginDir: pluginDir, Smoothing: cfg})
	return a, s
}

func TestApp_SmoothNow(t *testing.T) {
	a, s := newTestApp(t, t.TempDir())

	events, unsubscribe := a.Subscribe()
	defer unsubscribe()

	run, err := a.SmoothNow(context.Background(), "helix", nil)
	if err != nil {
		t.Fatalf("SmoothNow() error = %v", err)
	}

	if len(run.Points) != 40 || len(run.Points[0]) != 3 {
		t.Fatalf("expected 40 3D points, got %d", len(run.Points))
	}
	if len(run.Parameters) != 40 || len(run.Residuals) != 3 {
		t.Errorf("unexpected parameters/residuals: %d/%d", len(run.Parameters), len(run.Residuals))
	}

	var opts smoothing.Options
	if err := json.Unmarshal(run.Options, &opts); err != nil {
		t.Fatalf("failed to decode stored options: %v", err)
	}
	if opts.CoefficientCount != 12 {
		t.Errorf("stored coefficient_count = %d, want 12", opts.CoefficientCount)
	}

	stored, err := s.Runs().Latest("helix")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if stored.ID != run.ID {
		t.Errorf("latest run = %s, want %s", stored.ID, run.ID)
	}

	select {
	case got := <-events:
		if got.ID != run.ID {
			t.Errorf("published run = %s, want %s", got.ID, run.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("run was not published")
	}
}

func TestApp_SmoothNow_Override(t *testing.T) {
	a, _ := newTestApp(t, t.TempDir())

	run, err := a.SmoothNow(context.Background(), "helix", &config.SmoothingConfig{SampleCount: intPtr(7)})
	if err != nil {
		t.Fatalf("SmoothNow() error = %v", err)
	}
	if len(run.Points) != 7 {
		t.Errorf("expected 7 samples from override, got %d", len(run.Points))
	}

	_, err = a.SmoothNow(context.Background(), "helix", &config.SmoothingConfig{CoefficientCount: intPtr(2)})
	if !errors.Is(err, smoothing.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for invalid override, got %v", err)
	}
}

func TestApp_SmoothNow_Errors(t *testing.T) {
	a, s := newTestApp(t, t.TempDir())

	if _, err := a.SmoothNow(context.Background(), "missing", nil); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// More coefficients than points cannot be fitted.
	if err := s.Trajectories().Create(&store.Trajectory{ID: "short", Name: "short"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Trajectories().SetPoints("short", [][]float64{{0, 0}, {1, 1}, {2, 0}}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.SmoothNow(context.Background(), "short", nil); !errors.Is(err, smoothing.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if runs, _ := s.Runs().ListByTrajectory("short"); len(runs) != 0 {
		t.Errorf("failed runs must not be stored, got %d", len(runs))
	}
}

func TestApp_SubmitRequiresStart(t *testing.T) {
	a, _ := newTestApp(t, t.TempDir())

	if err := a.Submit("helix", nil); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestApp_SubmitRunsInBackground(t *testing.T) {
	a, _ := newTestApp(t, t.TempDir())

	events, unsubscribe := a.Subscribe()
	defer unsubscribe()

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	if err := a.Submit("helix", nil); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case run := <-events:
		if run.TrajectoryID != "helix" {
			t.Errorf("unexpected trajectory %s", run.TrajectoryID)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for background run")
	}
}

func TestApp_StopIsIdempotent(t *testing.T) {
	a, _ := newTestApp(t, t.TempDir())

	a.Stop()
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	a.Stop()
	a.Stop()

	if err := a.Submit("helix", nil); !errors.Is(err, ErrNotRunning) {
		t.Errorf("expected ErrNotRunning after Stop, got %v", err)
	}
}

func TestApp_ExportPlugin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	pluginDir := t.TempDir()
	dir := filepath.Join(pluginDir, "capture")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"capture","version":"1.0.0","executable":"capture.sh","actions":["write"]}`
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat > received.json\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "capture.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	a, s := newTestApp(t, pluginDir)
	if err := a.DiscoverPlugins(); err != nil {
		t.Fatalf("DiscoverPlugins() error = %v", err)
	}
	if err := s.Exports().Create(&store.Export{
		ID:           "exp-1",
		TrajectoryID: "helix",
		PluginName:   "capture",
		ActionName:   "write",
		Enabled:      true,
	}); err != nil {
		t.Fatalf("failed to bind export: %v", err)
	}

	run, err := a.SmoothNow(context.Background(), "helix", nil)
	if err != nil {
		t.Fatalf("SmoothNow() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "received.json"))
	if err != nil {
		t.Fatalf("plugin did not receive a request: %v", err)
	}
	var req struct {
		Action     string `json:"action"`
		Trajectory string `json:"trajectory"`
		RunID      string `json:"run_id"`
		Params     struct {
			Points [][]float64 `json:"points"`
		} `json:"params"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("invalid request JSON: %v", err)
	}
	if req.Action != "write" || req.Trajectory != "helix" || req.RunID != run.ID {
		t.Errorf("unexpected request: %+v", req)
	}
	if len(req.Params.Points) != len(run.Points) {
		t.Errorf("plugin got %d points, want %d", len(req.Params.Points), len(run.Points))
	}
}

func TestHub(t *testing.T) {
	h := NewHub()

	ch1, cancel1 := h.Subscribe()
	_, cancel2 := h.Subscribe()
	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}

	cancel2()
	cancel2()
	if h.Len() != 1 {
		t.Fatalf("Len() after cancel = %d, want 1", h.Len())
	}

	h.Publish(&store.Run{ID: "r1"})
	if got := <-ch1; got.ID != "r1" {
		t.Errorf("received %s, want r1", got.ID)
	}

	// A full subscriber does not block publishers.
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(&store.Run{ID: "flood"})
	}

	cancel1()
	if _, ok := <-drain(ch1); ok {
		t.Error("channel should be closed after cancel")
	}
}

// drain empties ch and returns it so the caller can observe closure.
func drain(ch <-chan *store.Run) <-chan *store.Run {
	for range ch {
	}
	return ch
}
