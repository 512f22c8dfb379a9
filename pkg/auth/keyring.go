package auth

import (
	"encoding/json"
	"errors"

	"github.com/zalando/go-keyring"

	"github.com/modelrelay/claudebridge/pkg/types"
)

// KeyringService is the default system-keychain service identifier.
const KeyringService = "claudebridge"

// KeyringStore keeps credential records in the system keychain (Keychain on
// macOS, Credential Manager on Windows, libsecret/kwallet on Linux). The
// keychain is unavailable on headless machines; callers should fall back to
// a FileStore when Set fails.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a keychain-backed store. An empty service uses
// KeyringService.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = KeyringService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Get(provider string) (*Credential, error) {
	data, err := keyring.Get(s.service, provider)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, &types.StorageError{Op: "get", Provider: provider, Err: err}
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, &types.StorageError{Op: "get", Provider: provider, Err: err}
	}
	return &cred, nil
}

func (s *KeyringStore) Set(provider string, cred *Credential) error {
	if cred == nil {
		return &types.StorageError{Op: "set", Provider: provider, Err: errors.New("credential cannot be nil")}
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return &types.StorageError{Op: "set", Provider: provider, Err: err}
	}
	if err := keyring.Set(s.service, provider, string(data)); err != nil {
		return &types.StorageError{Op: "set", Provider: provider, Err: err}
	}
	return nil
}

func (s *KeyringStore) Remove(provider string) error {
	if err := keyring.Delete(s.service, provider); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return &types.StorageError{Op: "remove", Provider: provider, Err: err}
	}
	return nil
}
