package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/kinesmooth/internal/mocap"
	"github.com/ayusman/kinesmooth/internal/store"
)

// runImport stores a trajectory file in the database and prints its id. An
// existing trajectory with the same name has its points replaced and its
// runs dropped.
func runImport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	dbPath := fs.String("db", "", "Database path (default ~/.kinesmooth/kinesmooth.db)")
	name := fs.String("name", "", "Trajectory name (default: input file name)")
	in := fs.String("in", "", "Input trajectory file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *in == "" {
		return errors.New("-in is required")
	}
	if *name == "" {
		base := filepath.Base(*in)
		*name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	points, err := mocap.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("failed to read trajectory: %w", err)
	}
	if len(points) == 0 {
		return errors.New("no samples in input")
	}

	if *dbPath == "" {
		if *dbPath, err = defaultDBPath(); err != nil {
			return err
		}
	}

	st, err := store.New(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	traj, err := st.Trajectories().GetByName(*name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		traj = &store.Trajectory{ID: uuid.New().String(), Name: *name}
		if err := st.Trajectories().Create(traj); err != nil {
			return fmt.Errorf("failed to create trajectory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up trajectory: %w", err)
	default:
		if err := st.Runs().DeleteByTrajectory(traj.ID); err != nil {
			return fmt.Errorf("failed to drop old runs: %w", err)
		}
	}

	if err := st.Trajectories().SetPoints(traj.ID, points); err != nil {
		return fmt.Errorf("failed to save points: %w", err)
	}

	fmt.Fprintf(stdout, "%s\t%s\t%d points x %d\n", traj.ID, traj.Name, len(points), len(points[0]))
	return nil
}
