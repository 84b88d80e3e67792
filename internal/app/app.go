// Package app ties the smoothing pipeline to storage, export plugins and run
// notifications.
package app

import (
	"errors"
	"log"
	"sync"

	"github.com/ayusman/kinesmooth/internal/config"
	"github.com/ayusman/kinesmooth/internal/plugin"
	"github.com/ayusman/kinesmooth/internal/store"
)

// QueueSize is the number of pending background jobs accepted before Submit
// starts rejecting work.
const QueueSize = 64

var (
	// ErrNotRunning is returned by Submit before Start or after Stop.
	ErrNotRunning = errors.New("app is not running")
	// ErrQueueFull is returned by Submit when the job queue is full.
	ErrQueueFull = errors.New("job queue is full")
)

// Config holds configuration options for the application.
type Config struct {
	Store     *store.Store
	PluginDir string
	// Smoothing holds the base settings; nil means defaults.
	Smoothing *config.SmoothingConfig
}

type job struct {
	trajectoryID string
	override     *config.SmoothingConfig
}

// App runs smoothing jobs for stored trajectories.
type App struct {
	config     Config
	smoothing  *config.SmoothingConfig
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor
	hub        *Hub

	mu     sync.RWMutex
	jobs   chan job
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a new App instance with the given configuration.
func New(cfg Config) *App {
	smoothing := cfg.Smoothing
	if smoothing == nil {
		smoothing = config.DefaultSmoothingConfig()
	}

	return &App{
		config:     cfg,
		smoothing:  smoothing,
		pluginMgr:  plugin.NewManager(cfg.PluginDir),
		pluginExec: plugin.NewExecutor(smoothing.GetExportTimeout()),
		hub:        NewHub(),
	}
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// Start launches the background workers. Calling Start on a running App is
// a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	a.jobs = make(chan job, QueueSize)
	a.stopCh = make(chan struct{})

	workers := a.smoothing.GetWorkers()
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.runWorker(a.jobs, a.stopCh)
	}

	log.Printf("Started %d smoothing workers", workers)
	return nil
}

// Stop signals the workers to exit and waits for in-flight jobs. Queued jobs
// that have not started are dropped.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return
	}
	close(a.stopCh)
	a.stopCh = nil
	a.jobs = nil
	a.mu.Unlock()

	a.wg.Wait()
	log.Println("Smoothing workers stopped")
}

// Submit queues a trajectory for background smoothing. The override, if not
// nil, is merged over the base settings.
func (a *App) Submit(trajectoryID string, override *config.SmoothingConfig) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.stopCh == nil {
		return ErrNotRunning
	}

	select {
	case a.jobs <- job{trajectoryID: trajectoryID, override: override}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe returns a channel receiving every completed run and a function
// that cancels the subscription.
func (a *App) Subscribe() (<-chan *store.Run, func()) {
	return a.hub.Subscribe()
}

// Subscribers returns the number of active run subscriptions.
func (a *App) Subscribers() int {
	return a.hub.Len()
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// SmoothingConfig returns the base smoothing settings.
func (a *App) SmoothingConfig() *config.SmoothingConfig {
	return a.smoothing
}

// Store returns the backing store.
func (a *App) Store() *store.Store {
	return a.config.Store
}
