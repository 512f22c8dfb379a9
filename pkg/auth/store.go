package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modelrelay/claudebridge/pkg/types"
)

// Store persists credentials keyed by provider name. Get returns (nil, nil)
// when no record exists; Remove is idempotent.
type Store interface {
	Get(provider string) (*Credential, error)
	Set(provider string, cred *Credential) error
	Remove(provider string) error
}

// FileStore keeps one JSON file per provider under a directory, written with
// 0600 permissions.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the storage directory if needed and returns a store
// over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// DefaultCredentialDir returns ~/.claudebridge, falling back to the current
// directory when the home directory cannot be determined.
func DefaultCredentialDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claudebridge"
	}
	return filepath.Join(home, ".claudebridge")
}

func (s *FileStore) path(provider string) string {
	return filepath.Join(s.dir, sanitizeProvider(provider)+".json")
}

// Get reads the stored credential for a provider, or (nil, nil) if absent.
func (s *FileStore) Get(provider string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(provider))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &types.StorageError{Op: "get", Provider: provider, Err: err}
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, &types.StorageError{Op: "get", Provider: provider, Err: err}
	}
	return &cred, nil
}

// Set writes the credential record for a provider.
func (s *FileStore) Set(provider string, cred *Credential) error {
	if cred == nil {
		return &types.StorageError{Op: "set", Provider: provider, Err: fmt.Errorf("credential cannot be nil")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(cred)
	if err != nil {
		return &types.StorageError{Op: "set", Provider: provider, Err: err}
	}
	if err := os.WriteFile(s.path(provider), data, 0600); err != nil {
		return &types.StorageError{Op: "set", Provider: provider, Err: err}
	}
	return nil
}

// Remove deletes the stored credential for a provider. Removing an absent
// record is not an error.
func (s *FileStore) Remove(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(provider)); err != nil && !os.IsNotExist(err) {
		return &types.StorageError{Op: "remove", Provider: provider, Err: err}
	}
	return nil
}

func sanitizeProvider(provider string) string {
	invalid := []string{"/", "\\", ":", "*", "?", `"`, "<", ">", "|"}
	result := provider
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	return result
}

// MemoryStore is an in-memory Store for tests and ephemeral use.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]Credential)}
}

func (s *MemoryStore) Get(provider string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[provider]
	if !ok {
		return nil, nil
	}
	// Copy to avoid external mutation of stored state.
	out := cred
	return &out, nil
}

func (s *MemoryStore) Set(provider string, cred *Credential) error {
	if cred == nil {
		return &types.StorageError{Op: "set", Provider: provider, Err: fmt.Errorf("credential cannot be nil")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[provider] = *cred
	return nil
}

func (s *MemoryStore) Remove(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, provider)
	return nil
}
