// Package config holds the persisted plugin settings: the flat switches the
// presentation layer edits, the debounce window, and the ordered list of
// property keys whose notifications never trigger a reset.
//
// Settings are stored as YAML and validated against an embedded CUE schema.
// A Manager serves concurrent reads from notification callbacks; every read
// sees the latest committed edit.
package config

import (
	"slices"
	"time"

	"github.com/roach88/resetaudio/internal/engine"
	"github.com/roach88/resetaudio/internal/locate"
	"github.com/roach88/resetaudio/internal/notify"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = 1

// Suppression is one entry of the ignore list.
type Suppression struct {
	Key     notify.PropertyKey `yaml:"key"`
	Comment string             `yaml:"comment"`
	Enabled bool               `yaml:"enabled"`
}

// Config is the persisted configuration record.
type Config struct {
	Version int `yaml:"version"`

	// ConfigVisible is whether the configuration window is shown.
	ConfigVisible bool `yaml:"config_visible"`

	AdvancedExpanded bool `yaml:"advanced_expanded"`

	// SuppressForward stops device notifications from reaching the host's
	// own handlers. The plugin resets audio itself instead.
	SuppressForward bool `yaml:"suppress_forward"`

	// PrintToChat prints reset notices to the host chat log.
	PrintToChat bool `yaml:"print_to_chat"`

	// CoalesceMs is the debounce window in milliseconds.
	CoalesceMs int `yaml:"coalesce_ms"`

	// EnableIntegration nudges the music player after a full reload.
	EnableIntegration bool `yaml:"enable_integration"`

	IgnorePropertyUpdateKeys []Suppression `yaml:"ignore_property_update_keys"`

	// Signatures overrides the built-in signature profile.
	Signatures *locate.Profile `yaml:"signatures,omitempty"`
}

// DefaultSuppression is seeded into an empty ignore list.
func DefaultSuppression() Suppression {
	return Suppression{
		Key:     notify.PKeyAudioClientAttach,
		Comment: "Audio client attach?",
		Enabled: true,
	}
}

// Default returns the first-run configuration.
func Default() Config {
	c := Config{
		Version:         CurrentVersion,
		ConfigVisible:   true,
		SuppressForward: true,
		PrintToChat:     true,
		CoalesceMs:      int(engine.DefaultWindow / time.Millisecond),
	}
	c.Seed()
	return c
}

// Seed adds DefaultSuppression when the ignore list is empty. It reports
// whether anything changed.
func (c *Config) Seed() bool {
	if len(c.IgnorePropertyUpdateKeys) > 0 {
		return false
	}
	c.IgnorePropertyUpdateKeys = append(c.IgnorePropertyUpdateKeys, DefaultSuppression())
	return true
}

// Window returns the debounce window, clamped to the supported range.
func (c *Config) Window() time.Duration {
	return engine.ClampWindow(time.Duration(c.CoalesceMs) * time.Millisecond)
}

// Profile returns the signature override or the built-in profile.
func (c *Config) Profile() locate.Profile {
	if c.Signatures != nil {
		return *c.Signatures
	}
	return locate.DefaultProfile()
}

// IsSuppressed reports whether an enabled entry for key exists.
func (c *Config) IsSuppressed(key notify.PropertyKey) bool {
	for _, s := range c.IgnorePropertyUpdateKeys {
		if s.Enabled && s.Key == key {
			return true
		}
	}
	return false
}

// indexOf returns the position of key in the ignore list, or -1.
func (c *Config) indexOf(key notify.PropertyKey) int {
	return slices.IndexFunc(c.IgnorePropertyUpdateKeys, func(s Suppression) bool {
		return s.Key == key
	})
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	c.IgnorePropertyUpdateKeys = slices.Clone(c.IgnorePropertyUpdateKeys)
	if c.Signatures != nil {
		p := *c.Signatures
		c.Signatures = &p
	}
	return c
}
