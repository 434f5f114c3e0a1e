package config

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Manager loads named YAML configurations, validates them, and watches the
// backing files so edits reach listeners without a restart. A configuration
// that fails to reload, unmarshal or validate is discarded and the previous
// value stays in effect.
type Manager struct {
	mu        sync.RWMutex
	basePath  string
	env       string
	log       *zap.Logger
	configs   map[string]Config
	watchers  map[string]*fsnotify.Watcher
	listeners map[string][]ChangeListener
}

// NewManager creates a manager reading from basePath (and basePath/env when
// env is non-empty). Environment variables prefixed with the upper-cased
// config name override file values.
func NewManager(basePath, env string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		basePath:  basePath,
		env:       env,
		log:       logger,
		configs:   make(map[string]Config),
		watchers:  make(map[string]*fsnotify.Watcher),
		listeners: make(map[string][]ChangeListener),
	}
}

// Load reads the file named cfg.GetName() into cfg, validates it, stores it,
// and begins watching the file for changes.
func (m *Manager) Load(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := cfg.GetName()
	v := m.newViper(name)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", name, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config %s: %w", name, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config %s: %w", name, err)
	}

	m.configs[name] = cfg
	if err := m.watchLocked(name, v.ConfigFileUsed()); err != nil {
		return fmt.Errorf("watch config %s: %w", name, err)
	}
	return nil
}

// Get returns the current value of a loaded configuration.
func (m *Manager) Get(name string) (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[name]
	return cfg, ok
}

// AddChangeListener subscribes a listener to its configuration's updates.
func (m *Manager) AddChangeListener(l ChangeListener) {
	m.mu.Lock()
	m.listeners[l.GetConfigName()] = append(m.listeners[l.GetConfigName()], l)
	m.mu.Unlock()
}

// Close stops all file watchers.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for name, w := range m.watchers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
		delete(m.watchers, name)
	}
	return first
}

func (m *Manager) newViper(name string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(m.basePath)
	if m.env != "" {
		v.AddConfigPath(fmt.Sprintf("%s/%s", m.basePath, m.env))
	}
	v.AutomaticEnv()
	v.SetEnvPrefix(strings.ToUpper(name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func (m *Manager) watchLocked(name, file string) error {
	if file == "" {
		return nil
	}
	if _, ok := m.watchers[name]; ok {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watchers[name] = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					m.reload(name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.log.Warn("config watcher error", zap.String("config", name), zap.Error(err))
			}
		}
	}()

	return watcher.Add(file)
}

// reload re-reads one configuration after a file change. The new value only
// replaces the old one when unmarshal, Validate and every listener succeed.
func (m *Manager) reload(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldCfg, ok := m.configs[name]
	if !ok {
		return
	}

	// New instance of the same concrete type, so listeners can assert it.
	newCfg := reflect.New(reflect.TypeOf(oldCfg).Elem()).Interface().(Config)

	v := m.newViper(name)
	if err := v.ReadInConfig(); err != nil {
		m.log.Warn("config reload: read failed", zap.String("config", name), zap.Error(err))
		return
	}
	if err := v.Unmarshal(newCfg); err != nil {
		m.log.Warn("config reload: unmarshal failed", zap.String("config", name), zap.Error(err))
		return
	}
	if err := newCfg.Validate(); err != nil {
		m.log.Warn("config reload: validation failed", zap.String("config", name), zap.Error(err))
		return
	}

	for _, l := range m.listeners[name] {
		if err := l.OnConfigChanged(name, newCfg, oldCfg); err != nil {
			m.log.Warn("config reload: listener rejected update",
				zap.String("config", name), zap.Error(err))
			return
		}
	}

	m.configs[name] = newCfg
	m.log.Info("configuration reloaded", zap.String("config", name))
}
