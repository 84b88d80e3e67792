package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ayusman/kinesmooth/internal/app"
	"github.com/ayusman/kinesmooth/internal/config"
	"github.com/ayusman/kinesmooth/internal/server"
	"github.com/ayusman/kinesmooth/internal/store"
)

// settingsKey is the settings row holding the last effective smoothing config.
const settingsKey = "smoothing"

// dataDir returns ~/.kinesmooth, creating it if needed.
func dataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".kinesmooth")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// defaultDBPath returns the database path used when -db is not given.
func defaultDBPath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "kinesmooth.db"), nil
}

// runServe starts the workers and the HTTP API and blocks until ctx is done.
func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)

	var sf smoothFlags
	sf.register(fs)
	addr := fs.String("addr", ":8080", "Listen address")
	dbPath := fs.String("db", "", "Database path (default ~/.kinesmooth/kinesmooth.db)")
	pluginDir := fs.String("plugins", "", "Export plugin directory (default ~/.kinesmooth/plugins)")
	webDir := fs.String("web", "", "Static files to serve at / (default: search for a web directory)")
	workers := fs.Int("workers", 0, "Background smoothing workers (0 keeps the configured value)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *dbPath == "" {
		if *dbPath, err = defaultDBPath(); err != nil {
			return err
		}
	}
	if *pluginDir == "" {
		dir, err := dataDir()
		if err != nil {
			return err
		}
		*pluginDir = filepath.Join(dir, "plugins")
	}

	st, err := store.New(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	base, err := savedSettings(st)
	if err != nil {
		return err
	}
	cfg, err := sf.settingsOver(fs, base)
	if err != nil {
		return err
	}
	if *workers > 0 {
		cfg.Workers = workers
	}
	if err := saveSettings(st, cfg); err != nil {
		log.Printf("Failed to persist settings: %v", err)
	}

	application := app.New(app.Config{
		Store:     st,
		PluginDir: *pluginDir,
		Smoothing: cfg,
	})
	if err := application.DiscoverPlugins(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}
	for _, p := range application.PluginManager().List() {
		log.Printf("Loaded plugin %s %s", p.Manifest.Name, p.Manifest.Version)
	}
	if err := application.Start(); err != nil {
		return err
	}
	defer application.Stop()

	staticDir := *webDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		log.Printf("Serving static files from: %s", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		App:       application,
	})
	defer srv.Close()

	log.Printf("Starting server on %s (database %s)", *addr, st.Path())
	return srv.Run(ctx, *addr)
}

// savedSettings returns the defaults overlaid with the settings persisted by
// the previous serve, if any.
func savedSettings(st *store.Store) (*config.SmoothingConfig, error) {
	cfg := config.DefaultSmoothingConfig()

	raw, err := st.Settings().Get(settingsKey)
	if errors.Is(err, store.ErrNotFound) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load saved settings: %w", err)
	}

	var saved config.SmoothingConfig
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		log.Printf("Ignoring unreadable saved settings: %v", err)
		return cfg, nil
	}
	return cfg.Merge(&saved), nil
}

// saveSettings persists the effective settings for the next serve.
func saveSettings(st *store.Store, cfg *config.SmoothingConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return st.Settings().Set(settingsKey, string(data))
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.kinesmooth/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if dirExists(p) {
			if absPath, err := filepath.Abs(p); err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".kinesmooth", "web")
	if dirExists(homeWebDir) {
		return homeWebDir
	}

	return ""
}

// dirExists reports whether path names an existing directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
