package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Run is a stored smoothing result for a trajectory.
type Run struct {
	ID           string          `json:"id"`
	TrajectoryID string          `json:"trajectory_id"`
	Options      json.RawMessage `json:"options"`
	Parameters   []float64       `json:"parameters"`
	Points       [][]float64     `json:"points"`
	Residuals    []float64       `json:"residuals"`
	Warnings     int             `json:"warnings"`
	Duration     time.Duration   `json:"duration_ns"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RunRepository provides access to smoothing runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

const runColumns = `id, trajectory_id, options, parameters, points, residuals, warnings, duration_ms, created_at`

// Create inserts a new run.
func (r *RunRepository) Create(run *Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	options := run.Options
	if options == nil {
		options = json.RawMessage("{}")
	}
	params, err := json.Marshal(nonNil(run.Parameters))
	if err != nil {
		return err
	}
	points, err := json.Marshal(run.Points)
	if err != nil {
		return err
	}
	residuals, err := json.Marshal(nonNil(run.Residuals))
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT INTO smoothing_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TrajectoryID, string(options), string(params), string(points),
		string(residuals), run.Warnings, run.Duration.Milliseconds(), run.CreatedAt,
	)
	return err
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	return scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM smoothing_runs WHERE id = ?`, id))
}

// Latest retrieves the most recent run of a trajectory.
func (r *RunRepository) Latest(trajectoryID string) (*Run, error) {
	return scanRun(r.db.QueryRow(
		`SELECT `+runColumns+` FROM smoothing_runs WHERE trajectory_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		trajectoryID,
	))
}

// ListByTrajectory retrieves all runs of a trajectory, newest first.
func (r *RunRepository) ListByTrajectory(trajectoryID string) ([]*Run, error) {
	rows, err := r.db.Query(
		`SELECT `+runColumns+` FROM smoothing_runs WHERE trajectory_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		trajectoryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// DeleteByTrajectory removes all runs of a trajectory.
func (r *RunRepository) DeleteByTrajectory(trajectoryID string) error {
	_, err := r.db.Exec(`DELETE FROM smoothing_runs WHERE trajectory_id = ?`, trajectoryID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var options, params, points, residuals string
	var durationMS int64

	err := row.Scan(&run.ID, &run.TrajectoryID, &options, &params, &points,
		&residuals, &run.Warnings, &durationMS, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	run.Options = json.RawMessage(options)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(params), &run.Parameters); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(points), &run.Points); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(residuals), &run.Residuals); err != nil {
		return nil, err
	}
	return run, nil
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
