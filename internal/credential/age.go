// Package credential keeps the remote API token encrypted at rest.
package credential

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// AgeTokenStore encrypts the API token to a local X25519 identity using
// filippo.io/age. The identity is generated on first Save.
type AgeTokenStore struct {
	tokenPath    string
	identityPath string
}

// NewAgeTokenStore creates a store for an encrypted token at tokenPath
// and its identity at identityPath.
func NewAgeTokenStore(tokenPath, identityPath string) *AgeTokenStore {
	return &AgeTokenStore{
		tokenPath:    tokenPath,
		identityPath: identityPath,
	}
}

// Save encrypts token and writes it, replacing any previous token.
func (s *AgeTokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token is empty")
	}

	identity, err := s.loadOrCreateIdentity()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, token); err != nil {
		return fmt.Errorf("encrypting token: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.tokenPath), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(s.tokenPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}

// Load decrypts the stored token. It returns "" with no error when no token has been saved.
func (s *AgeTokenStore) Load() (string, error) {
	data, err := os.ReadFile(s.tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}

	identity, err := s.loadIdentity()
	if err != nil {
		return "", err
	}

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return "", fmt.Errorf("decrypting token: %w", err)
	}
	token, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted token: %w", err)
	}
	return strings.TrimSpace(string(token)), nil
}

// Clear removes the stored token. The identity is kept.
func (s *AgeTokenStore) Clear() error {
	if err := os.Remove(s.tokenPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}

// IsConfigured returns true if both the token and identity files exist.
func (s *AgeTokenStore) IsConfigured() bool {
	if _, err := os.Stat(s.tokenPath); err != nil {
		return false
	}
	if _, err := os.Stat(s.identityPath); err != nil {
		return false
	}
	return true
}

func (s *AgeTokenStore) loadOrCreateIdentity() (*age.X25519Identity, error) {
	identity, err := s.loadIdentity()
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	identity, err = age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.identityPath), 0700); err != nil {
		return nil, fmt.Errorf("creating identity directory: %w", err)
	}
	if err := os.WriteFile(s.identityPath, []byte(identity.String()+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("writing identity: %w", err)
	}
	return identity, nil
}

func (s *AgeTokenStore) loadIdentity() (*age.X25519Identity, error) {
	data, err := os.ReadFile(s.identityPath)
	if err != nil {
		return nil, fmt.Errorf("reading identity: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("no X25519 identity in %s", s.identityPath)
}
