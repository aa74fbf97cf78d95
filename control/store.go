// control/store.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with reload propagation and file watching.

package control

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

// ConfigStore holds the current Config and notifies listeners on change.
type ConfigStore struct {
	mu        sync.RWMutex
	cfg       Config
	listeners []func(Config)
	log       logrus.FieldLogger
}

// NewConfigStore seeds a store with cfg.
func NewConfigStore(cfg Config, log logrus.FieldLogger) *ConfigStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ConfigStore{
		cfg: cfg,
		log: log.WithField("component", "control"),
	}
}

// Snapshot returns the current config.
func (cs *ConfigStore) Snapshot() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.cfg
}

// Set replaces the config and calls every listener synchronously, in
// registration order, outside the lock.
func (cs *ConfigStore) Set(cfg Config) {
	cs.mu.Lock()
	cs.cfg = cfg
	listeners := append([]func(Config){}, cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

// OnReload registers a listener for config changes.
func (cs *ConfigStore) OnReload(fn func(Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// Watch reloads path whenever it changes on disk. Invalid revisions are
// logged and skipped; the store keeps the last good config.
func (cs *ConfigStore) Watch(path string) error {
	if path == "" {
		return oops.In("control").Errorf("watch requires a config file")
	}
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return oops.In("control").With("path", path).Wrapf(err, "read config")
	}
	v.OnConfigChange(func(ev fsnotify.Event) {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			cs.log.WithError(err).WithField("path", path).Warn("config reload rejected")
			return
		}
		cs.log.WithField("path", path).Info("config reloaded")
		cs.Set(cfg)
	})
	v.WatchConfig()
	return nil
}
