// Package sidecar reads and writes the on-disk JSON mirror of the library:
// one data.json per book directory plus a bookManager.json at the root.
// The sidecar tree is the interchange format with other tools and the
// recovery path when the database is lost, so files are written atomically
// and imports tolerate missing pieces.
package sidecar

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	dataFileName    = "data.json"
	libraryFileName = "bookManager.json"
)

// ErrNoData is returned when a book directory has no data file.
var ErrNoData = errors.New("sidecar: no data file")

// Manager owns one sidecar directory tree.
type Manager struct {
	root   string
	logger *slog.Logger
}

// New creates a Manager rooted at the given directory, creating it if
// needed.
func New(root string, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create sidecar root: %w", err)
	}
	return &Manager{root: root, logger: logger}, nil
}

// Root returns the sidecar root directory.
func (m *Manager) Root() string {
	return m.root
}

// DataPath returns the data file path for a book.
func (m *Manager) DataPath(baseName string) string {
	return filepath.Join(m.root, baseName, dataFileName)
}

// LibraryPath returns the library manifest path.
func (m *Manager) LibraryPath() string {
	return filepath.Join(m.root, libraryFileName)
}

// WriteBookData writes a book's annotation snapshot to its data file.
func (m *Manager) WriteBookData(baseName string, data any) error {
	dir := filepath.Join(m.root, baseName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create book dir: %w", err)
	}
	return m.writeJSON(filepath.Join(dir, dataFileName), data)
}

// ReadBookData reads a book's annotation snapshot into dest. Returns
// ErrNoData when the book has no data file.
func (m *Manager) ReadBookData(baseName string, dest any) error {
	return m.readJSON(m.DataPath(baseName), dest)
}

// WriteLibrary writes the library manifest.
func (m *Manager) WriteLibrary(library any) error {
	return m.writeJSON(m.LibraryPath(), library)
}

// ReadLibrary reads the library manifest into dest. Returns ErrNoData when
// no manifest exists yet.
func (m *Manager) ReadLibrary(dest any) error {
	return m.readJSON(m.LibraryPath(), dest)
}

// BookDirs lists the base names of book directories that carry a data file.
func (m *Manager) BookDirs() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("read sidecar root: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(m.DataPath(entry.Name())); err == nil {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// writeJSON writes a value atomically: marshal, write to a temp file in the
// same directory, then rename over the target. A crash mid-write never
// leaves a truncated file behind.
func (m *Manager) writeJSON(path string, value any) error {
	data, err := json.Marshal(value, json.Deterministic(true))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".sidecar-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	if m.logger != nil {
		m.logger.Debug("sidecar file written", "path", path, "bytes", len(data))
	}
	return nil
}

func (m *Manager) readJSON(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNoData
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
