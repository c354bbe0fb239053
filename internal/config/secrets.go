package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// SecretStore resolves named credentials. It checks an application-managed
// dotenv file first, then the process environment.
type SecretStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewSecretStore loads the dotenv file at path. A missing file is not an
// error; the store then falls back to the environment only.
func NewSecretStore(path string) (*SecretStore, error) {
	store := &SecretStore{secrets: map[string]string{}}
	if path == "" {
		return store, nil
	}

	// godotenv.Read parses without mutating os.Environ, so secrets from the
	// file stay scoped to this store.
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store, nil
		}
		return nil, fmt.Errorf("reading secrets file %s: %w", path, err)
	}
	store.secrets = values
	return store, nil
}

// NewSecretStoreFromMap builds a store from in-memory values.
func NewSecretStoreFromMap(values map[string]string) *SecretStore {
	s := &SecretStore{secrets: make(map[string]string, len(values))}
	for k, v := range values {
		s.secrets[k] = v
	}
	return s
}

// Resolve returns the credential or "" when it is absent everywhere.
func (s *SecretStore) Resolve(name string) string {
	if name == "" {
		return ""
	}
	if s != nil {
		s.mu.RLock()
		v, ok := s.secrets[name]
		s.mu.RUnlock()
		if ok && v != "" {
			return v
		}
	}
	return os.Getenv(name)
}

// Set stores a credential supplied at runtime (e.g. typed into the UI).
func (s *SecretStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = value
}
