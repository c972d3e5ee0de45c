// Package profile stores one selfie embedding per registered person, keyed
// by display name. Lookups, registration overwrite and removal all match
// names case-insensitively (Unicode case folding); the most recently
// supplied casing is kept as the canonical display form.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

var (
	// ErrInvalidName means the supplied name is empty after trimming.
	ErrInvalidName = errors.New("person name must not be empty")

	// ErrNotFound means no profile is registered under the given name.
	ErrNotFound = errors.New("person not found")
)

// Profile is one registered person.
type Profile struct {
	Name       string
	Embedding  []float32
	SelfiePath string
}

// storedProfile is the on-disk value; the file is a JSON object mapping
// display name to this shape.
type storedProfile struct {
	Embedding  []float32 `json:"embedding"`
	SelfiePath string    `json:"selfie_path"`
}

// Store is a name-keyed profile store persisted as a single JSON file. Every
// mutation rewrites the whole file. A mutex serializes mutators so the store
// can sit behind a concurrent web front end without lost updates.
type Store struct {
	path string

	mu       sync.RWMutex
	profiles map[string]Profile // keyed by case-folded name
	folder   cases.Caser
}

// NewStore opens (or initializes) the profile store at path. A missing file
// is an empty store, not an error.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:     path,
		profiles: make(map[string]Profile),
		folder:   cases.Fold(),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}

	var raw map[string]storedProfile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing profiles file %s: %w", path, err)
	}
	for name, p := range raw {
		s.profiles[s.folder.String(name)] = Profile{
			Name:       name,
			Embedding:  p.Embedding,
			SelfiePath: p.SelfiePath,
		}
	}
	return s, nil
}

// Register stores a profile, overwriting any existing entry whose name
// matches case-insensitively. The newly supplied casing becomes the display
// form. Fails with ErrInvalidName for empty or whitespace-only names.
func (s *Store) Register(name string, embedding []float32, selfiePath string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if len(embedding) == 0 {
		return errors.New("embedding must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[s.folder.String(name)] = Profile{
		Name:       name,
		Embedding:  embedding,
		SelfiePath: selfiePath,
	}
	return s.save()
}

// Lookup returns the profile registered under name, matching
// case-insensitively. Fails with ErrNotFound when nothing matches.
func (s *Store) Lookup(name string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[s.folder.String(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// Remove deletes the profile registered under name, matching
// case-insensitively like Lookup and Register. Returns false when nothing
// matched.
func (s *Store) Remove(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.folder.String(strings.TrimSpace(name))
	if _, ok := s.profiles[key]; !ok {
		return false, nil
	}
	delete(s.profiles, key)
	if err := s.save(); err != nil {
		return false, err
	}
	return true, nil
}

// List returns all registered display names, lexicographically sorted for
// deterministic presentation.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered profiles.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// save rewrites the whole store file. Callers must hold the write lock.
func (s *Store) save() error {
	out := make(map[string]storedProfile, len(s.profiles))
	for _, p := range s.profiles {
		out[p.Name] = storedProfile{Embedding: p.Embedding, SelfiePath: p.SelfiePath}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling profiles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("creating profiles directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing profiles file: %w", err)
	}
	return nil
}
