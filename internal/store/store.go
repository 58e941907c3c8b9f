// Package store persists mouse.Params.
//
// Both stores satisfy mouse.Store: Load never fails and falls back to
// mouse.DefaultParams, and Save absorbs its own errors.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"optimouse/internal/mouse"
)

// Memory keeps parameters in process. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	params mouse.Params
	saved  bool
	writes int
}

// NewMemory returns an empty store that loads defaults.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load() mouse.Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return mouse.DefaultParams()
	}
	return m.params
}

func (m *Memory) Save(p mouse.Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = p
	m.saved = true
	m.writes++
}

// Writes returns how many times Save was called.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Format is an on-disk encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the encoding from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported params file extension %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// File stores parameters in a YAML or TOML file.
type File struct {
	path   string
	format Format
	logger *slog.Logger
}

// NewFile returns a store backed by path. The format follows the extension.
func NewFile(path string, logger *slog.Logger) (*File, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &File{path: path, format: format, logger: logger}, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Load reads the file. A missing, unreadable or invalid file yields defaults.
func (f *File) Load() mouse.Params {
	p, err := f.read()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		f.logger.Debug("params file not found, using defaults", "path", f.path)
		return mouse.DefaultParams()
	case err != nil:
		f.logger.Warn("params file unusable, using defaults", "path", f.path, "error", err)
		return mouse.DefaultParams()
	}
	return p
}

// Save writes p atomically. Failures are logged.
func (f *File) Save(p mouse.Params) {
	if err := f.write(p); err != nil {
		f.logger.Error("failed to save params", "path", f.path, "error", err)
		return
	}
	f.logger.Debug("saved params", "path", f.path, "params", p)
}

func (f *File) read() (mouse.Params, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return mouse.Params{}, err
	}

	// Fields missing from the file keep their defaults.
	p := mouse.DefaultParams()
	if err := decode(f.format, data, &p); err != nil {
		return mouse.Params{}, fmt.Errorf("parse %s: %w", f.path, err)
	}
	if !p.Valid() {
		return mouse.Params{}, fmt.Errorf("invalid params in %s: %v", f.path, p)
	}
	return p, nil
}

func (f *File) write(p mouse.Params) error {
	data, err := encode(f.format, p)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func encode(format Format, p mouse.Params) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(p)
	case FormatTOML:
		return toml.Marshal(p)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func decode(format Format, data []byte, p *mouse.Params) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(p); err != nil {
			if errors.Is(err, io.EOF) {
				// Empty document.
				return nil
			}
			return err
		}
		return nil
	case FormatTOML:
		return toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(p)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
