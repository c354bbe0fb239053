package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem writes report artifacts (Markdown, HTML, diagrams) to disk.
// Files are stored flat at: {baseDir}/{name}
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates the export storage, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	// MkdirAll creates the directory and all parents (like mkdir -p).
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

// Path returns the filesystem path for an artifact. Names are reduced to
// their base component so an export can never escape baseDir.
func (fs *FileSystem) Path(name string) string {
	return filepath.Join(fs.baseDir, filepath.Base(filepath.Clean("/"+name)))
}

// Read returns the raw bytes of an exported artifact.
func (fs *FileSystem) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(fs.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("export not found: %s", name)
		}
		return nil, fmt.Errorf("reading export: %w", err)
	}
	return data, nil
}

// Write saves an artifact, replacing any previous version.
func (fs *FileSystem) Write(name string, data []byte) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("export name is empty")
	}
	// 0644: owner rw, group r, others r; standard for non-executable files.
	if err := os.WriteFile(fs.Path(name), data, 0644); err != nil {
		return fmt.Errorf("writing export %s: %w", name, err)
	}
	return nil
}

// Exists checks if an artifact exists on disk.
func (fs *FileSystem) Exists(name string) bool {
	_, err := os.Stat(fs.Path(name))
	return err == nil
}

// List returns the artifact names currently in the export directory.
func (fs *FileSystem) List() ([]string, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
