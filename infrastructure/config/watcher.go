package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the configuration when a file in the loader's
// directory changes and hands the new value to registered callbacks.
// An invalid file keeps the current configuration.
type Watcher struct {
	loader   *Loader
	watcher  *fsnotify.Watcher
	current  *Config
	mu       sync.RWMutex
	onChange []func(*Config)
	logger   *zap.Logger
	debounce time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher starts from the loader's current result
func NewWatcher(loader *Loader, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watching the directory also catches editors that save by rename
	if err := fw.Add(loader.BasePath()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		loader:   loader,
		watcher:  fw,
		current:  cfg,
		logger:   logger.Named("config"),
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.loader.BasePath()))
}

// Stop stops watching and waits for the loop to exit
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		<-w.done
		w.logger.Info("Configuration watcher stopped")
	})
}

// OnChange registers a callback for configuration changes
func (w *Watcher) OnChange(handler func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the last valid configuration
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isConfigFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func isConfigFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (w *Watcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	next, err := w.loader.Load()
	if err != nil {
		w.logger.Error("Invalid configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	prev := w.current
	w.current = next
	handlers := append([]func(*Config){}, w.onChange...)
	w.mu.Unlock()

	if changes := diff(prev, next); len(changes) > 0 {
		w.logger.Info("Configuration reloaded", zap.Strings("changed", changes))
	}
	for _, handler := range handlers {
		handler(next)
	}
}

// diff names the top-level sections that differ
func diff(prev, next *Config) []string {
	var changed []string
	pv, nv := reflect.ValueOf(*prev), reflect.ValueOf(*next)
	t := pv.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		if !reflect.DeepEqual(pv.Field(i).Interface(), nv.Field(i).Interface()) {
			changed = append(changed, tag)
		}
	}
	return changed
}
