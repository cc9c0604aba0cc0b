// Package keystore keeps the leaderboard submit token in the OS keychain.
//
// Lookup order is the environment override, then the keychain, then an
// optional JSON file used on systems without a keychain service.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// EnvSubmitToken overrides any stored token.
const EnvSubmitToken = "SCOREQUEST_SUBMIT_TOKEN"

const (
	defaultService = "scorequest-desktop"
	partToken      = "submit-token"
)

// ErrNotFound is returned when no token is stored for a server.
var ErrNotFound = keyring.ErrNotFound

// Store reads and writes per-server submit tokens.
type Store struct {
	service      string
	fallbackPath string
	getenv       func(string) string
	mu           sync.Mutex
}

// New creates a store. fallbackPath may be empty to disable the file
// fallback.
func New(service, fallbackPath string) *Store {
	if strings.TrimSpace(service) == "" {
		service = defaultService
	}
	return &Store{service: service, fallbackPath: fallbackPath, getenv: os.Getenv}
}

func (s *Store) user(server string) string {
	return strings.TrimRight(strings.TrimSpace(server), "/") + "#" + partToken
}

// SubmitToken returns the token for server.
func (s *Store) SubmitToken(server string) (string, error) {
	if v := strings.TrimSpace(s.getenv(EnvSubmitToken)); v != "" {
		return v, nil
	}

	val, err := keyring.Get(s.service, s.user(server))
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) && !isUnavailable(err) {
		return "", fmt.Errorf("keystore: keyring get: %w", err)
	}

	return s.getFallback(s.user(server))
}

// SetSubmitToken stores token for server.
func (s *Store) SetSubmitToken(server, token string) error {
	if strings.TrimSpace(server) == "" {
		return fmt.Errorf("keystore: server is required")
	}
	err := keyring.Set(s.service, s.user(server), token)
	if err == nil {
		return nil
	}
	if !isUnavailable(err) {
		return fmt.Errorf("keystore: keyring set: %w", err)
	}
	return s.setFallback(s.user(server), token)
}

// DeleteSubmitToken removes the stored token for server. Deleting a missing
// token is not an error.
func (s *Store) DeleteSubmitToken(server string) error {
	err := keyring.Delete(s.service, s.user(server))
	ferr := s.deleteFallback(s.user(server))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) && !isUnavailable(err) {
		return fmt.Errorf("keystore: keyring delete: %w", err)
	}
	return ferr
}

func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

func (s *Store) getFallback(user string) (string, error) {
	if s.fallbackPath == "" {
		return "", ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallback()
	if err != nil {
		return "", err
	}
	v, ok := data[user]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *Store) setFallback(user, value string) error {
	if s.fallbackPath == "" {
		return fmt.Errorf("keystore: keyring unavailable and no fallback path configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallback()
	if err != nil {
		return err
	}
	data[user] = value
	return s.writeFallback(data)
}

func (s *Store) deleteFallback(user string) error {
	if s.fallbackPath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallback()
	if err != nil {
		return err
	}
	if _, ok := data[user]; !ok {
		return nil
	}
	delete(data, user)
	return s.writeFallback(data)
}

func (s *Store) readFallback() (map[string]string, error) {
	out := map[string]string{}
	raw, err := os.ReadFile(s.fallbackPath)
	if os.IsNotExist(err) || (err == nil && len(raw) == 0) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: read fallback: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("keystore: decode fallback: %w", err)
	}
	return out, nil
}

func (s *Store) writeFallback(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("keystore: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("keystore: encode fallback: %w", err)
	}
	if err := os.WriteFile(s.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("keystore: write fallback: %w", err)
	}
	return nil
}
