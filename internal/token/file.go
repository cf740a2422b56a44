package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps the credential in a JSON file readable only by its owner.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the credential file.
func (s *FileStore) Load(_ context.Context) (Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read token file: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("failed to decode token file %s: %w", s.path, err)
	}
	if cred.RefreshToken == "" {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

// Save writes to a temp file in the same directory, syncs it and renames it
// over the previous file.
func (s *FileStore) Save(_ context.Context, cred Credential) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmp := f.Name()

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err := f.Chmod(0o600); err != nil {
		return fmt.Errorf("failed to restrict token file mode: %w", err)
	}
	if err := json.NewEncoder(f).Encode(cred); err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync token file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	success = true
	return nil
}
