// Package cache keeps secai's workspace state between CLI invocations.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when a state file has not been written yet.
var ErrNotFound = errors.New("no cached state")

// DirName is the state directory created in the workspace root.
const DirName = ".secai"

// Store reads and writes JSON state files under one directory.
type Store struct {
	dir string
}

// New returns a store rooted at root/.secai.
func New(root string) *Store {
	return &Store{dir: filepath.Join(root, DirName)}
}

// Dir returns the state directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the location of the named state file.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Load decodes the named file into v.
func (s *Store) Load(name string, v any) error {
	b, err := os.ReadFile(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// Save writes v to the named file. The write goes through a temp file so a
// crash never leaves half a state file behind.
func (s *Store) Save(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.Path(name))
}

// Remove deletes the named file. Missing files are ignored.
func (s *Store) Remove(name string) error {
	err := os.Remove(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
