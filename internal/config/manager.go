package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/resetaudio/internal/notify"
)

// Manager owns the live configuration.
//
// Thread-safety: all methods are safe for concurrent use. Reads are served
// from an in-memory copy; Update validates, persists and then publishes.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu  sync.RWMutex
	cfg Config

	onChange []func(Config)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// OnChange registers f to run after every committed change, with a copy of
// the new configuration.
func OnChange(f func(Config)) ManagerOption {
	return func(m *Manager) { m.onChange = append(m.onChange, f) }
}

// NewManager loads the configuration from store. A missing configuration
// starts from Default and is saved. An empty ignore list is seeded and saved.
func NewManager(store Store, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}

	cfg, err := store.Load()
	switch {
	case IsNotExist(err):
		m.logger.Info("no configuration found, using defaults")
		cfg = Default()
		if err := store.Save(cfg); err != nil {
			return nil, fmt.Errorf("save default config: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		if cfg.Seed() {
			if err := store.Save(cfg); err != nil {
				return nil, fmt.Errorf("save seeded config: %w", err)
			}
		}
	}
	m.cfg = cfg
	return m, nil
}

// Snapshot returns a copy of the current configuration.
func (m *Manager) Snapshot() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Clone()
}

// Update applies f to a copy of the configuration, validates it, saves it
// and publishes it. On any error the live configuration is unchanged.
func (m *Manager) Update(f func(*Config)) error {
	m.mu.Lock()
	next := m.cfg.Clone()
	f(&next)
	if errs := Validate(&next); len(errs) > 0 {
		m.mu.Unlock()
		return ValidationErrors(errs)
	}
	if err := m.store.Save(next); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("save config: %w", err)
	}
	m.cfg = next
	m.mu.Unlock()

	m.notify(next)
	return nil
}

// Reload re-reads the store. Used when the file is edited externally.
func (m *Manager) Reload() error {
	cfg, err := m.store.Load()
	if err != nil {
		return err
	}
	cfg.Seed()

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	m.logger.Info("configuration reloaded")
	m.notify(cfg.Clone())
	return nil
}

// Save persists the current configuration unchanged.
func (m *Manager) Save() error {
	return m.store.Save(m.Snapshot())
}

func (m *Manager) notify(c Config) {
	for _, f := range m.onChange {
		f(c.Clone())
	}
}

// IsSuppressed reports whether an enabled ignore entry exists for key.
func (m *Manager) IsSuppressed(key notify.PropertyKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.IsSuppressed(key)
}

// SuppressForward reports whether notifications are kept from the host.
func (m *Manager) SuppressForward() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.SuppressForward
}

// PrintToChat reports whether reset notices go to the chat log.
func (m *Manager) PrintToChat() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.PrintToChat
}

// IntegrationEnabled reports whether the music player is nudged after a
// full reload.
func (m *Manager) IntegrationEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.EnableIntegration
}

// Window returns the current debounce window.
func (m *Manager) Window() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Window()
}

// ErrDuplicateKey is returned by AddSuppression for a key already listed.
var ErrDuplicateKey = errors.New("property key already listed")

// ErrUnknownKey is returned when a key is not in the ignore list.
var ErrUnknownKey = errors.New("property key not listed")

// AddSuppression appends an enabled entry for key.
func (m *Manager) AddSuppression(key notify.PropertyKey, comment string) error {
	snap := m.Snapshot()
	if snap.indexOf(key) >= 0 {
		return fmt.Errorf("%s: %w", key, ErrDuplicateKey)
	}
	return m.Update(func(c *Config) {
		c.IgnorePropertyUpdateKeys = append(c.IgnorePropertyUpdateKeys, Suppression{
			Key:     key,
			Comment: comment,
			Enabled: true,
		})
	})
}

// RemoveSuppression deletes the entry for key. The list is not reseeded
// until the next load.
func (m *Manager) RemoveSuppression(key notify.PropertyKey) error {
	return m.editSuppression(key, func(c *Config, i int) {
		c.IgnorePropertyUpdateKeys = append(c.IgnorePropertyUpdateKeys[:i], c.IgnorePropertyUpdateKeys[i+1:]...)
	})
}

// SetSuppressionEnabled toggles the entry for key.
func (m *Manager) SetSuppressionEnabled(key notify.PropertyKey, enabled bool) error {
	return m.editSuppression(key, func(c *Config, i int) {
		c.IgnorePropertyUpdateKeys[i].Enabled = enabled
	})
}

func (m *Manager) editSuppression(key notify.PropertyKey, f func(c *Config, i int)) error {
	snap := m.Snapshot()
	if snap.indexOf(key) < 0 {
		return fmt.Errorf("%s: %w", key, ErrUnknownKey)
	}
	return m.Update(func(c *Config) {
		if i := c.indexOf(key); i >= 0 {
			f(c, i)
		}
	})
}
