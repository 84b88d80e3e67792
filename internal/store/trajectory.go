package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Trajectory is a named point sequence stored in the database.
type Trajectory struct {
	ID         string
	Name       string
	Dimensions int
	PointCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TrajectoryRepository provides CRUD operations for trajectories.
type TrajectoryRepository struct {
	db *sql.DB
}

// Trajectories returns the trajectory repository for this store.
func (s *Store) Trajectories() *TrajectoryRepository {
	return &TrajectoryRepository{db: s.db}
}

const trajectoryColumns = `id, name, dimensions, point_count, created_at, updated_at`

// Create inserts a new trajectory into the database.
func (r *TrajectoryRepository) Create(t *Trajectory) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO trajectories (id, name, dimensions, point_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Dimensions, t.PointCount, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetByID retrieves a trajectory by its ID.
func (r *TrajectoryRepository) GetByID(id string) (*Trajectory, error) {
	return r.getOne(`SELECT `+trajectoryColumns+` FROM trajectories WHERE id = ?`, id)
}

// GetByName retrieves a trajectory by its name.
func (r *TrajectoryRepository) GetByName(name string) (*Trajectory, error) {
	return r.getOne(`SELECT `+trajectoryColumns+` FROM trajectories WHERE name = ?`, name)
}

func (r *TrajectoryRepository) getOne(query string, arg string) (*Trajectory, error) {
	t := &Trajectory{}
	err := r.db.QueryRow(query, arg).
		Scan(&t.ID, &t.Name, &t.Dimensions, &t.PointCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// List retrieves all trajectories, newest first.
func (r *TrajectoryRepository) List() ([]*Trajectory, error) {
	rows, err := r.db.Query(`SELECT ` + trajectoryColumns + ` FROM trajectories ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trajectories []*Trajectory
	for rows.Next() {
		t := &Trajectory{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Dimensions, &t.PointCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		trajectories = append(trajectories, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trajectories, nil
}

// Update updates the name of an existing trajectory.
func (r *TrajectoryRepository) Update(t *Trajectory) error {
	t.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE trajectories SET name = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// Delete removes a trajectory and, through cascades, its points, runs and
// export binding.
func (r *TrajectoryRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM trajectories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SetPoints replaces the points of a trajectory in a single transaction and
// updates its dimension and point counts.
func (r *TrajectoryRepository) SetPoints(id string, points [][]float64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM trajectory_points WHERE trajectory_id = ?`, id); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO trajectory_points (trajectory_id, sequence, coords) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range points {
		coords, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(id, i, string(coords)); err != nil {
			return err
		}
	}

	dims := 0
	if len(points) > 0 {
		dims = len(points[0])
	}
	result, err := tx.Exec(
		`UPDATE trajectories SET dimensions = ?, point_count = ?, updated_at = ? WHERE id = ?`,
		dims, len(points), time.Now(), id,
	)
	if err != nil {
		return err
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	return tx.Commit()
}

// GetPoints retrieves the points of a trajectory in sequence order.
func (r *TrajectoryRepository) GetPoints(id string) ([][]float64, error) {
	rows, err := r.db.Query(
		`SELECT coords FROM trajectory_points WHERE trajectory_id = ? ORDER BY sequence`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points [][]float64
	for rows.Next() {
		var coords string
		if err := rows.Scan(&coords); err != nil {
			return nil, err
		}
		var p []float64
		if err := json.Unmarshal([]byte(coords), &p); err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return points, nil
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
