package keystore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

const server = "http://localhost:5000"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	keyring.MockInit()
	s := New("scorequest-test", filepath.Join(t.TempDir(), "secrets.json"))
	s.getenv = func(string) string { return "" }
	return s
}

func TestSetGetDelete(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.SubmitToken(server); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before set, got %v", err)
	}

	if err := s.SetSubmitToken(server, "abc123"); err != nil {
		t.Fatalf("SetSubmitToken: %v", err)
	}
	got, err := s.SubmitToken(server + "/")
	if err != nil {
		t.Fatalf("SubmitToken: %v", err)
	}
	if got != "abc123" {
		t.Errorf("Expected abc123, got %q", got)
	}

	if err := s.DeleteSubmitToken(server); err != nil {
		t.Fatalf("DeleteSubmitToken: %v", err)
	}
	if _, err := s.SubmitToken(server); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteSubmitToken(server); err != nil {
		t.Errorf("Expected deleting a missing token to succeed, got %v", err)
	}
}

func TestTokensArePerServer(t *testing.T) {
	s := newTestStore(t)
	s.SetSubmitToken(server, "local")
	s.SetSubmitToken("https://scores.example.com", "remote")

	if got, _ := s.SubmitToken(server); got != "local" {
		t.Errorf("Expected local token, got %q", got)
	}
	if got, _ := s.SubmitToken("https://scores.example.com"); got != "remote" {
		t.Errorf("Expected remote token, got %q", got)
	}
}

func TestEnvironmentOverride(t *testing.T) {
	s := newTestStore(t)
	s.SetSubmitToken(server, "stored")
	s.getenv = func(key string) string {
		if key == EnvSubmitToken {
			return " from-env "
		}
		return ""
	}

	got, err := s.SubmitToken(server)
	if err != nil {
		t.Fatalf("SubmitToken: %v", err)
	}
	if got != "from-env" {
		t.Errorf("Expected env token, got %q", got)
	}
}

func TestKeyringErrorIsReturned(t *testing.T) {
	keyring.MockInitWithError(errors.New("locked"))
	s := New("scorequest-test", "")
	s.getenv = func(string) string { return "" }

	if err := s.SetSubmitToken(server, "x"); err == nil {
		t.Error("Expected keyring error from SetSubmitToken")
	}
	if _, err := s.SubmitToken(server); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Expected wrapped keyring error, got %v", err)
	}
}

func TestFallbackWhenKeyringUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("The name org.freedesktop.secrets was not provided: dbus"))
	path := filepath.Join(t.TempDir(), "nested", "secrets.json")
	s := New("scorequest-test", path)
	s.getenv = func(string) string { return "" }

	if err := s.SetSubmitToken(server, "fallback-token"); err != nil {
		t.Fatalf("SetSubmitToken: %v", err)
	}
	got, err := s.SubmitToken(server)
	if err != nil {
		t.Fatalf("SubmitToken: %v", err)
	}
	if got != "fallback-token" {
		t.Errorf("Expected fallback token, got %q", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat fallback: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected 0600 fallback file, got %v", info.Mode().Perm())
	}

	if err := s.DeleteSubmitToken(server); err != nil {
		t.Fatalf("DeleteSubmitToken: %v", err)
	}
	if _, err := s.SubmitToken(server); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestSetRequiresServer(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetSubmitToken("  ", "x"); err == nil {
		t.Error("Expected error for empty server")
	}
}
