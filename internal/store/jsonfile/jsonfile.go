// Package jsonfile persists the user set as one JSON document on disk.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m3rciful/moexbot/internal/domain"
)

type document struct {
	Version int           `json:"version"`
	Users   []domain.User `json:"users"`
}

const formatVersion = 1

// Persister reads and writes a single JSON file.
type Persister struct {
	path string
}

// New returns a persister for path. The parent directory is created on first save.
func New(path string) *Persister {
	return &Persister{path: path}
}

// Load returns no users when the file does not exist yet.
func (p *Persister) Load(ctx context.Context) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: read %s: %w", p.path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("jsonfile: decode %s: %w", p.path, err)
	}
	return doc.Users, nil
}

// Save writes to a temp file and renames it over the target.
func (p *Persister) Save(ctx context.Context, users []domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(document{Version: formatVersion, Users: users}, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encode: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("jsonfile: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: close: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: rename: %w", err)
	}
	return nil
}
