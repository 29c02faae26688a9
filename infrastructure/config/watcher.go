package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds the settings that may change without a restart.
type RuntimeConfig struct {
	// CollisionPadding is the extra clearance, in grid units, required
	// between element footprints.
	CollisionPadding float64 `yaml:"collisionPadding"`
	// MaxPositionBatch caps how many placements one batch request may carry.
	MaxPositionBatch int `yaml:"maxPositionBatch"`
	// MaxConnectionsPerUser caps concurrent push streams per user.
	MaxConnectionsPerUser int `yaml:"maxConnectionsPerUser"`
	// StatsCacheTTLSeconds bounds how stale the stats snapshot may get.
	StatsCacheTTLSeconds int `yaml:"statsCacheTTLSeconds"`
}

// Watcher watches the runtime settings file and republishes it on change.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	stopCh  chan struct{}

	mu       sync.RWMutex
	current  *RuntimeConfig
	onChange []func(*RuntimeConfig)
}

// NewWatcher loads the runtime settings file and starts tracking it. The
// parent directory is watched too so atomic saves (write-then-rename) are
// seen.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	current, err := loadRuntimeConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load runtime config: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		logger.Warn("Failed to watch config directory", zap.Error(err))
	}

	return &Watcher{
		path:    path,
		watcher: fsw,
		logger:  logger,
		stopCh:  make(chan struct{}),
		current: current,
	}, nil
}

// Start begins watching for configuration changes.
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Runtime config watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

// Current returns the active runtime settings.
func (w *Watcher) Current() *RuntimeConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// The accessors below are handed to the services as closures so every call
// sees the latest reloaded value.

// CollisionPadding reads the active padding.
func (w *Watcher) CollisionPadding() float64 {
	return w.Current().CollisionPadding
}

// MaxPositionBatch reads the active batch cap.
func (w *Watcher) MaxPositionBatch() int {
	return w.Current().MaxPositionBatch
}

// MaxConnectionsPerUser reads the active per-user connection cap.
func (w *Watcher) MaxConnectionsPerUser() int {
	return w.Current().MaxConnectionsPerUser
}

// StatsCacheTTL reads the active stats cache TTL.
func (w *Watcher) StatsCacheTTL() time.Duration {
	return time.Duration(w.Current().StatsCacheTTLSeconds) * time.Second
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(handler func(*RuntimeConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

func (w *Watcher) watchLoop() {
	var debounce *time.Timer
	const debounceDuration = 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDuration, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	newConfig, err := loadRuntimeConfig(w.path)
	if err != nil {
		w.logger.Error("Failed to reload runtime config, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = newConfig
	handlers := append([]func(*RuntimeConfig){}, w.onChange...)
	w.mu.Unlock()

	if old.CollisionPadding != newConfig.CollisionPadding {
		w.logger.Info("Collision padding changed",
			zap.Float64("from", old.CollisionPadding),
			zap.Float64("to", newConfig.CollisionPadding),
		)
	}
	for _, handler := range handlers {
		go handler(newConfig)
	}
	w.logger.Info("Runtime config reloaded", zap.String("path", w.path))
}

func loadRuntimeConfig(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RuntimeConfig{
		CollisionPadding:      20,
		MaxPositionBatch:      25,
		MaxConnectionsPerUser: 10,
		StatsCacheTTLSeconds:  30,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.CollisionPadding < 0 {
		return nil, fmt.Errorf("collisionPadding cannot be negative")
	}
	if cfg.MaxPositionBatch <= 0 || cfg.MaxPositionBatch > 25 {
		return nil, fmt.Errorf("maxPositionBatch must be between 1 and 25")
	}
	if cfg.MaxConnectionsPerUser <= 0 {
		return nil, fmt.Errorf("maxConnectionsPerUser must be positive")
	}
	if cfg.StatsCacheTTLSeconds <= 0 {
		return nil, fmt.Errorf("statsCacheTTLSeconds must be positive")
	}
	return cfg, nil
}
