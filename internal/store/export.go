package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Export binds a trajectory to a sink plugin invoked after each smoothing run.
type Export struct {
	ID           string
	TrajectoryID string
	PluginName   string
	ActionName   string
	Config       json.RawMessage
	Enabled      bool
	CreatedAt    time.Time
}

// ExportRepository provides CRUD operations for exports.
type ExportRepository struct {
	db *sql.DB
}

// Exports returns the export repository for this store.
func (s *Store) Exports() *ExportRepository {
	return &ExportRepository{db: s.db}
}

const exportColumns = `id, trajectory_id, plugin_name, action_name, config, enabled, created_at`

// Create inserts a new export binding.
func (r *ExportRepository) Create(e *Export) error {
	e.CreatedAt = time.Now()

	config := e.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	_, err := r.db.Exec(
		`INSERT INTO exports (`+exportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TrajectoryID, e.PluginName, e.ActionName, string(config), e.Enabled, e.CreatedAt,
	)
	return err
}

// GetByID retrieves an export by its ID.
func (r *ExportRepository) GetByID(id string) (*Export, error) {
	e, err := scanExport(r.db.QueryRow(`SELECT `+exportColumns+` FROM exports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// GetByTrajectoryID retrieves the export bound to a trajectory.
// Returns nil, nil if no export is bound.
func (r *ExportRepository) GetByTrajectoryID(trajectoryID string) (*Export, error) {
	e, err := scanExport(r.db.QueryRow(`SELECT `+exportColumns+` FROM exports WHERE trajectory_id = ?`, trajectoryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// List retrieves all exports, newest first.
func (r *ExportRepository) List() ([]*Export, error) {
	rows, err := r.db.Query(`SELECT ` + exportColumns + ` FROM exports ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []*Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return exports, nil
}

// Update updates an existing export binding.
func (r *ExportRepository) Update(e *Export) error {
	config := e.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	enabled := 0
	if e.Enabled {
		enabled = 1
	}

	result, err := r.db.Exec(
		`UPDATE exports SET trajectory_id = ?, plugin_name = ?, action_name = ?, config = ?, enabled = ?
		 WHERE id = ?`,
		e.TrajectoryID, e.PluginName, e.ActionName, string(config), enabled, e.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// Delete removes an export by its ID.
func (r *ExportRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM exports WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func scanExport(row rowScanner) (*Export, error) {
	e := &Export{}
	var config string
	var enabled int

	if err := row.Scan(&e.ID, &e.TrajectoryID, &e.PluginName, &e.ActionName, &config, &enabled, &e.CreatedAt); err != nil {
		return nil, err
	}

	e.Config = json.RawMessage(config)
	e.Enabled = enabled != 0
	return e, nil
}
