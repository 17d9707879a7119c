package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/meal-planner/internal/model"
)

// ErrNoToken means no usable stored session exists.
var ErrNoToken = errors.New("no valid token (login required)")

type tokenFile struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   time.Time  `json:"expires_at"`
	User        model.User `json:"user"`
}

// TokenStore persists the access token between CLI runs.
type TokenStore struct {
	path string
	now  func() time.Time
}

// NewTokenStore keeps the token at path. An empty path disables persistence.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path, now: time.Now}
}

// Save writes the token with owner-only permissions.
func (s *TokenStore) Save(tok model.Tokens, u model.User) error {
	if s == nil || s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{AccessToken: tok.AccessToken, ExpiresAt: tok.ExpiresAt, User: u}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}

// Load returns the stored token and the user it was issued to.
func (s *TokenStore) Load() (model.Tokens, model.User, error) {
	if s == nil || s.path == "" {
		return model.Tokens{}, model.User{}, ErrNoToken
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.Tokens{}, model.User{}, ErrNoToken
	}
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if tf.AccessToken == "" || s.now().After(tf.ExpiresAt) {
		return model.Tokens{}, model.User{}, ErrNoToken
	}
	return model.Tokens{AccessToken: tf.AccessToken, ExpiresAt: tf.ExpiresAt}, tf.User, nil
}

// Clear removes the stored token.
func (s *TokenStore) Clear() error {
	if s == nil || s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
