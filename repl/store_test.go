package repl

import (
	"path/filepath"
	"reflect"
	"testing"
)

func testStore(t *testing.T, s MarkerStore) {
	t.Helper()

	if _, ok, err := s.Get("net", SimpleName); err != nil || ok {
		t.Error("Unexpected:", ok, err)
	}

	if err := s.Set("net", SimpleName, 42); err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if err := s.Set("net", HighlightName, 7); err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if err := s.Set("other", SimpleName, 1); err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if err := s.Set("net", SimpleName, 43); err != nil {
		t.Fatal("Unexpected error:", err)
	}

	tests := []struct {
		Network string
		Backend string
		Pos     int64
		Ok      bool
	}{
		{"net", SimpleName, 43, true},
		{"net", HighlightName, 7, true},
		{"other", SimpleName, 1, true},
		{"other", HighlightName, 0, false},
	}
	for _, test := range tests {
		pos, ok, err := s.Get(test.Network, test.Backend)
		if err != nil {
			t.Error("Unexpected error:", err)
		}
		if pos != test.Pos || ok != test.Ok {
			t.Errorf("%s/%s: Expected: %d %v, got: %d %v",
				test.Network, test.Backend, test.Pos, test.Ok, pos, ok)
		}
	}

	if err := s.Delete("net", SimpleName); err != nil {
		t.Error("Unexpected error:", err)
	}
	if err := s.Delete("net", SimpleName); err != nil {
		t.Error("Deleting twice should not fail:", err)
	}
	if _, ok, _ := s.Get("net", SimpleName); ok {
		t.Error("Marker should be gone")
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	testStore(t, s)
	if err := s.Close(); err != nil {
		t.Error("Unexpected error:", err)
	}
}

func TestBuntStore(t *testing.T) {
	t.Parallel()

	s, err := OpenBuntStore(InMemory)
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	defer s.Close()
	testStore(t, s)

	nets, err := s.Networks()
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if exp := []string{"net", "other"}; !reflect.DeepEqual(nets, exp) {
		t.Error("Unexpected:", nets, "should be:", exp)
	}
}

func TestBuntStore_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "markers.db")
	s, err := OpenBuntStore(path)
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if err = s.Set("net", LastDisconnectName, 1234); err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if err = s.Close(); err != nil {
		t.Fatal("Unexpected error:", err)
	}

	s, err = OpenBuntStore(path)
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	defer s.Close()
	pos, ok, err := s.Get("net", LastDisconnectName)
	if err != nil || !ok || pos != 1234 {
		t.Error("Unexpected:", pos, ok, err)
	}
}
