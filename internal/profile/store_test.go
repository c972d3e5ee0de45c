package profile

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "person_profiles.json")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s, path
}

func TestRegisterAndLookup(t *testing.T) {
	s, _ := newTestStore(t)

	emb := []float32{0.1, 0.2, 0.3}
	if err := s.Register("Ann", emb, "selfies/ann.jpg"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name   string
		lookup string
	}{
		{"exact casing", "Ann"},
		{"lower casing", "ann"},
		{"upper casing", "ANN"},
		{"whitespace trimmed", "  Ann  "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := s.Lookup(tc.lookup)
			if err != nil {
				t.Fatalf("Lookup(%q) failed: %v", tc.lookup, err)
			}
			if p.Name != "Ann" || p.SelfiePath != "selfies/ann.jpg" {
				t.Errorf("unexpected profile: %+v", p)
			}
			if !reflect.DeepEqual(p.Embedding, emb) {
				t.Errorf("embedding changed: %v", p.Embedding)
			}
		})
	}
}

func TestRegisterInvalidName(t *testing.T) {
	s, _ := newTestStore(t)

	for _, name := range []string{"", "   ", "\t\n"} {
		err := s.Register(name, []float32{1}, "x.jpg")
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("Register(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestReRegisterOverwritesCaseInsensitively(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Register("Ann", []float32{1, 0}, "first.jpg"); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := s.Register("ann", []float32{0, 1}, "second.jpg"); err != nil {
		t.Fatalf("second Register failed: %v", err)
	}

	names := s.List()
	if len(names) != 1 {
		t.Fatalf("expected exactly one profile after re-registration, got %v", names)
	}
	// The newly supplied casing wins as display form.
	if names[0] != "ann" {
		t.Errorf("expected canonical name %q, got %q", "ann", names[0])
	}

	p, err := s.Lookup("ANN")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if p.SelfiePath != "second.jpg" {
		t.Errorf("expected overwritten selfie path, got %q", p.SelfiePath)
	}
}

func TestRemoveCaseInsensitive(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Register("Bob", []float32{1}, "bob.jpg"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	removed, err := s.Remove("BOB")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Error("expected Remove to match case-insensitively")
	}

	removed, err = s.Remove("Bob")
	if err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}
	if removed {
		t.Error("expected second Remove to report nothing matched")
	}
}

func TestLookupNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Lookup("nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListSorted(t *testing.T) {
	s, _ := newTestStore(t)

	for _, name := range []string{"Zoe", "ann", "Bob"} {
		if err := s.Register(name, []float32{1}, name+".jpg"); err != nil {
			t.Fatalf("Register(%q) failed: %v", name, err)
		}
	}

	got := s.List()
	want := []string{"Bob", "Zoe", "ann"} // lexicographic byte order
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s, path := newTestStore(t)

	emb := []float32{0.5, -0.25, 0.125}
	if err := s.Register("Ann", emb, "ann.jpg"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := s.Register("Bob", []float32{1, 0, 0}, "bob.jpg"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	if reopened.Count() != 2 {
		t.Fatalf("expected 2 profiles after reload, got %d", reopened.Count())
	}

	p, err := reopened.Lookup("ann")
	if err != nil {
		t.Fatalf("Lookup after reload failed: %v", err)
	}
	if p.Name != "Ann" || p.SelfiePath != "ann.jpg" {
		t.Errorf("unexpected reloaded profile: %+v", p)
	}
	if !reflect.DeepEqual(p.Embedding, emb) {
		t.Errorf("embedding values changed across reload: %v", p.Embedding)
	}
}
