package tokenstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

const (
	fileVersion    = 1
	profileType    = "token"
	defaultProfile = "default"
)

// profileFile is the on-disk format of the profile file.
type profileFile struct {
	Version  int                 `json:"version"`
	Profiles map[string]*profile `json:"profiles"`
}

type profile struct {
	Type      string `json:"type"`
	Provider  string `json:"provider"`
	Token     string `json:"token"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// FileStore keeps secrets in a JSON profile file readable only by the owner.
// The file is re-read on every operation so concurrent processes see each other's writes.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// DefaultFilePath returns the profile file location under the user config directory.
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(dir, "clawx-auth", "auth-profiles.json"), nil
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the profile file path.
func (s *FileStore) Path() string { return s.path }

// Save writes secret as the default profile of providerID.
func (s *FileStore) Save(ctx context.Context, providerID, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if providerID == "" {
		return errors.New("provider id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}

	data.Profiles[profileKey(providerID)] = &profile{
		Type:      profileType,
		Provider:  providerID,
		Token:     secret,
		UpdatedAt: s.now().UnixMilli(),
	}

	return s.write(data)
}

// Load returns the stored secret of providerID.
func (s *FileStore) Load(ctx context.Context, providerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return "", err
	}

	p, ok := data.Profiles[profileKey(providerID)]
	if !ok || p.Token == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, providerID)
	}
	return p.Token, nil
}

// Delete removes the profile of providerID. Deleting a missing profile is not an error.
func (s *FileStore) Delete(ctx context.Context, providerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}

	key := profileKey(providerID)
	if _, ok := data.Profiles[key]; !ok {
		return nil
	}
	delete(data.Profiles, key)

	return s.write(data)
}

func (s *FileStore) read() (*profileFile, error) {
	data := &profileFile{Version: fileVersion, Profiles: make(map[string]*profile)}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", s.path, err)
	}
	if data.Profiles == nil {
		data.Profiles = make(map[string]*profile)
	}
	return data, nil
}

func (s *FileStore) write(data *profileFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data.Version = fileVersion
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token file: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("failed to restrict token file permissions: %w", err)
	}
	return nil
}

func profileKey(providerID string) string {
	return providerID + ":" + defaultProfile
}
