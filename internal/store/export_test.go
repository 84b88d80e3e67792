package store

import (
	"encoding/json"
	"testing"
)

func TestExportRepository_CRUD(t *testing.T) {
	s := newTestStore(t)
	createTrajectory(t, s, "traj-1")
	repo := s.Exports()

	export := &Export{
		ID:           "exp-1",
		TrajectoryID: "traj-1",
		PluginName:   "gpdata-export",
		ActionName:   "write",
		Config:       json.RawMessage(`{"path":"/tmp/out.gpdata"}`),
		Enabled:      true,
	}
	if err := repo.Create(export); err != nil {
		t.Fatalf("failed to create export: %v", err)
	}

	got, err := repo.GetByID("exp-1")
	if err != nil {
		t.Fatalf("failed to get export: %v", err)
	}
	if got.PluginName != "gpdata-export" || !got.Enabled {
		t.Errorf("unexpected export: %+v", got)
	}

	bound, err := repo.GetByTrajectoryID("traj-1")
	if err != nil {
		t.Fatalf("failed to get export by trajectory: %v", err)
	}
	if bound == nil || bound.ID != "exp-1" {
		t.Errorf("GetByTrajectoryID() = %+v", bound)
	}

	got.Enabled = false
	got.ActionName = "append"
	if err := repo.Update(got); err != nil {
		t.Fatalf("failed to update export: %v", err)
	}
	got, err = repo.GetByID("exp-1")
	if err != nil {
		t.Fatalf("failed to get export: %v", err)
	}
	if got.Enabled || got.ActionName != "append" {
		t.Errorf("update not applied: %+v", got)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list exports: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 export, got %d", len(list))
	}

	if err := repo.Delete("exp-1"); err != nil {
		t.Fatalf("failed to delete export: %v", err)
	}
	if _, err := repo.GetByID("exp-1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestExportRepository_Unbound(t *testing.T) {
	s := newTestStore(t)
	createTrajectory(t, s, "traj-1")
	repo := s.Exports()

	bound, err := repo.GetByTrajectoryID("traj-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bound != nil {
		t.Errorf("expected nil for unbound trajectory, got %+v", bound)
	}

	if err := repo.Update(&Export{ID: "missing"}); err != ErrNotFound {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete("missing"); err != ErrNotFound {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestExportRepository_OnePerTrajectory(t *testing.T) {
	s := newTestStore(t)
	createTrajectory(t, s, "traj-1")
	repo := s.Exports()

	if err := repo.Create(&Export{ID: "a", TrajectoryID: "traj-1", PluginName: "p", ActionName: "x"}); err != nil {
		t.Fatalf("failed to create export: %v", err)
	}
	if err := repo.Create(&Export{ID: "b", TrajectoryID: "traj-1", PluginName: "p", ActionName: "x"}); err == nil {
		t.Error("binding a second export to the same trajectory should fail")
	}
}
