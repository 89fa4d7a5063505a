package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store persists a Config.
type Store interface {
	// Load returns the stored configuration. A missing configuration is
	// reported with an error matching fs.ErrNotExist.
	Load() (Config, error)
	Save(Config) error
}

// FileStore keeps the configuration in a YAML file.
type FileStore struct {
	Path string
}

// NewFileStore returns a store for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads and validates the file.
func (s *FileStore) Load() (Config, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration bytes.
func Parse(data []byte) (Config, error) {
	if errs := ValidateYAML(data); len(errs) > 0 {
		return Config{}, ValidationErrors(errs)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, ValidationErrors{{Message: err.Error(), Code: ErrCodeParse}}
	}
	if errs := duplicateKeys(&c); len(errs) > 0 {
		return Config{}, ValidationErrors(errs)
	}
	return c, nil
}

// Save writes c atomically: a temp file in the same directory is renamed
// over the target.
func (s *FileStore) Save(c Config) error {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests and hosts that persist
// configuration themselves.
type MemoryStore struct {
	cfg   *Config
	Saves int
}

// Load returns the last saved configuration.
func (s *MemoryStore) Load() (Config, error) {
	if s.cfg == nil {
		return Config{}, fmt.Errorf("memory store: %w", fs.ErrNotExist)
	}
	return s.cfg.Clone(), nil
}

// Save records c.
func (s *MemoryStore) Save(c Config) error {
	c = c.Clone()
	s.cfg = &c
	s.Saves++
	return nil
}

// IsNotExist reports whether err means no configuration was stored yet.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
