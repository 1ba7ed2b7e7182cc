package credential

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) (*AgeTokenStore, string, string) {
	t.Helper()
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "keys", "token.age")
	identityPath := filepath.Join(dir, "keys", "identity.txt")
	return NewAgeTokenStore(tokenPath, identityPath), tokenPath, identityPath
}

func TestAgeTokenStore_SaveLoad(t *testing.T) {
	s, tokenPath, identityPath := newTestStore(t)

	if s.IsConfigured() {
		t.Error("IsConfigured() = true before Save")
	}
	if err := s.Save("  patABC.123\n"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !s.IsConfigured() {
		t.Error("IsConfigured() = false after Save")
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "patABC.123" {
		t.Errorf("Load() = %q, want %q", got, "patABC.123")
	}

	raw, err := os.ReadFile(tokenPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if bytes.Contains(raw, []byte("patABC.123")) {
		t.Error("token file contains the plaintext token")
	}

	for _, path := range []string{tokenPath, identityPath} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat(%s) error = %v", path, err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("%s mode = %v, want 0600", filepath.Base(path), info.Mode().Perm())
		}
	}
}

func TestAgeTokenStore_SaveKeepsIdentity(t *testing.T) {
	s, _, identityPath := newTestStore(t)

	if err := s.Save("first"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	before, _ := os.ReadFile(identityPath)

	if err := s.Save("second"); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	after, _ := os.ReadFile(identityPath)

	if !bytes.Equal(before, after) {
		t.Error("identity changed between saves")
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "second" {
		t.Errorf("Load() = %q, want %q", got, "second")
	}
}

func TestAgeTokenStore_LoadMissing(t *testing.T) {
	s, _, _ := newTestStore(t)

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != "" {
		t.Errorf("Load() = %q, want empty", got)
	}
}

func TestAgeTokenStore_LoadWithWrongIdentity(t *testing.T) {
	s, tokenPath, _ := newTestStore(t)
	if err := s.Save("secret"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	other := NewAgeTokenStore(tokenPath, filepath.Join(t.TempDir(), "other.txt"))
	if err := other.Save("unrelated"); err != nil {
		t.Fatalf("other Save() error = %v", err)
	}
	// other overwrote the token with its own identity; the first store can no longer read it.
	if _, err := s.Load(); err == nil {
		t.Error("Load() expected error for token encrypted to another identity")
	}
}

func TestAgeTokenStore_SaveEmpty(t *testing.T) {
	s, _, _ := newTestStore(t)
	if err := s.Save("   "); err == nil {
		t.Error("Save() expected error for empty token")
	}
}

func TestAgeTokenStore_Clear(t *testing.T) {
	s, _, _ := newTestStore(t)
	if err := s.Save("secret"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
	if s.IsConfigured() {
		t.Error("IsConfigured() = true after Clear")
	}
}

func TestReadToken(t *testing.T) {
	t.Run("first line trimmed", func(t *testing.T) {
		got, err := ReadToken(strings.NewReader("pat.xyz \nignored\n"))
		if err != nil {
			t.Fatalf("ReadToken() error = %v", err)
		}
		if got != "pat.xyz" {
			t.Errorf("ReadToken() = %q, want %q", got, "pat.xyz")
		}
	})

	t.Run("no trailing newline", func(t *testing.T) {
		got, err := ReadToken(strings.NewReader("pat.xyz"))
		if err != nil {
			t.Fatalf("ReadToken() error = %v", err)
		}
		if got != "pat.xyz" {
			t.Errorf("ReadToken() = %q, want %q", got, "pat.xyz")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := ReadToken(strings.NewReader("\n")); err == nil {
			t.Error("ReadToken() expected error for empty input")
		}
	})
}
