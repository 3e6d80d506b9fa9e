// Package seen remembers which notes have already triggered a desktop
// notification so consecutive polling cycles don't alert twice.
package seen

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Set is a set of note ids.
type Set map[string]struct{}

// NewSet returns a set holding ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s Set) Add(id string) { s[id] = struct{}{} }

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Union adds every id of other to s.
func (s Set) Union(other Set) {
	for id := range other {
		s.Add(id)
	}
}

// Sorted returns the ids in lexical order.
func (s Set) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Tracker stores a Set in a flat file, one id per line.
type Tracker struct {
	path string
}

// NewTracker returns a tracker backed by the file at path.
func NewTracker(path string) *Tracker {
	return &Tracker{path: path}
}

// Path returns the backing file.
func (t *Tracker) Path() string { return t.path }

// Load reads the ids written by the previous Save. A missing file is an
// empty set.
func (t *Tracker) Load() (Set, error) {
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open seen-message file: %w", err)
	}
	defer f.Close()

	ids := Set{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			ids.Add(id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seen-message file: %w", err)
	}
	return ids, nil
}

// Save replaces the file contents with ids. The new contents are written to
// a temporary file first and renamed into place.
func (t *Tracker) Save(ids Set) error {
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary seen-message file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, id := range ids.Sorted() {
		fmt.Fprintln(w, id)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write seen-message file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write seen-message file: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("failed to replace seen-message file: %w", err)
	}
	return nil
}
