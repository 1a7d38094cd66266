// Package auth runs the Spotify OAuth2 authorization code flow and caches tokens on disk.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

// DefaultTokenPath is relative to the user config directory.
const DefaultTokenPath = "mood-mixer/spotify_token.json"

// cachedToken is the on-disk envelope. Scopes record what the token was
// granted for, so a token from an older scope set is never reused.
type cachedToken struct {
	Scopes  []string      `json:"scopes"`
	SavedAt time.Time     `json:"saved_at"`
	Token   *oauth2.Token `json:"token"`
}

// TokenCache stores one OAuth token in a private file.
type TokenCache struct {
	path   string
	scopes []string
	now    func() time.Time
}

// NewTokenCache returns a cache at path for tokens granted scopes. An empty
// path resolves to DefaultTokenPath under the user config directory.
func NewTokenCache(path string, scopes ...string) (*TokenCache, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("getting user config dir: %w", err)
		}
		path = filepath.Join(dir, DefaultTokenPath)
	}

	sorted := slices.Clone(scopes)
	slices.Sort(sorted)
	return &TokenCache{path: path, scopes: sorted, now: time.Now}, nil
}

// Path returns the token file location.
func (c *TokenCache) Path() string {
	return c.path
}

// Load returns the cached token, or nil when there is none or it was granted
// for different scopes.
func (c *TokenCache) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var cached cachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	if cached.Token == nil || !slices.Equal(cached.Scopes, c.scopes) {
		return nil, nil
	}
	return cached.Token, nil
}

// Save replaces the cached token. The file is written next to its final
// location and renamed into place, so readers never see a partial token.
func (c *TokenCache) Save(token *oauth2.Token) error {
	if token == nil {
		return errors.New("cannot save nil token")
	}

	data, err := json.MarshalIndent(cachedToken{
		Scopes:  c.scopes,
		SavedAt: c.now().UTC(),
		Token:   token,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Delete removes the token file. A missing file is not an error.
func (c *TokenCache) Delete() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
