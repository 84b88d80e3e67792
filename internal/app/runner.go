package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/kinesmooth/internal/config"
	"github.com/ayusman/kinesmooth/internal/plugin"
	"github.com/ayusman/kinesmooth/internal/smoothing"
	"github.com/ayusman/kinesmooth/internal/store"
)

// runWorker drains the job queue until stop is closed.
func (a *App) runWorker(jobs <-chan job, stop <-chan struct{}) {
	defer a.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-stop:
			return
		case j := <-jobs:
			if _, err := a.SmoothNow(ctx, j.trajectoryID, j.override); err != nil {
				log.Printf("Smoothing %s failed: %v", j.trajectoryID, err)
			}
		}
	}
}

// SmoothNow smooths a stored trajectory synchronously. The run is persisted,
// handed to the bound export plugin and broadcast to subscribers. Export
// failures are logged and do not fail the run.
func (a *App) SmoothNow(ctx context.Context, trajectoryID string, override *config.SmoothingConfig) (*store.Run, error) {
	if a.config.Store == nil {
		return nil, fmt.Errorf("no store configured")
	}

	settings := a.smoothing.Merge(override)
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", smoothing.ErrInvalidArgument, err)
	}

	traj, err := a.config.Store.Trajectories().GetByID(trajectoryID)
	if err != nil {
		return nil, err
	}
	points, err := a.config.Store.Trajectories().GetPoints(traj.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load points: %w", err)
	}

	opts := settings.Options()
	pipeline := smoothing.NewPipeline(opts, func(w smoothing.DuplicateWarning) {
		log.Printf("(WW) %s: is the data malformed? %s", traj.Name, w)
	})

	start := time.Now()
	result, err := pipeline.Smooth(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("smoothing %s: %w", traj.Name, err)
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}

	run := &store.Run{
		ID:           uuid.New().String(),
		TrajectoryID: traj.ID,
		Options:      optsJSON,
		Parameters:   result.Samples,
		Points:       result.Points,
		Residuals:    result.Residuals,
		Warnings:     len(result.Warnings),
		Duration:     time.Since(start),
	}
	if err := a.config.Store.Runs().Create(run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	log.Printf("Smoothed %s: %d points -> %d samples in %v (%d warnings)",
		traj.Name, len(points), len(result.Points), run.Duration, run.Warnings)

	if err := a.export(ctx, traj, run); err != nil {
		log.Printf("Export for %s failed: %v", traj.Name, err)
	}

	a.hub.Publish(run)
	return run, nil
}

// export runs the plugin bound to the trajectory, if any.
func (a *App) export(ctx context.Context, traj *store.Trajectory, run *store.Run) error {
	binding, err := a.config.Store.Exports().GetByTrajectoryID(traj.ID)
	if err != nil {
		return err
	}
	if binding == nil || !binding.Enabled {
		return nil
	}

	p, err := a.pluginMgr.Get(binding.PluginName)
	if err != nil {
		return fmt.Errorf("%s: %w", binding.PluginName, err)
	}

	params, err := json.Marshal(plugin.RunParams{
		Parameters: run.Parameters,
		Points:     run.Points,
		Residuals:  run.Residuals,
	})
	if err != nil {
		return err
	}

	resp, err := a.pluginExec.Execute(ctx, p, &plugin.Request{
		Action:     binding.ActionName,
		Trajectory: traj.Name,
		RunID:      run.ID,
		Config:     binding.Config,
		Params:     params,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s/%s: %s", binding.PluginName, binding.ActionName, resp.Error)
	}
	return nil
}
