// ABOUTME: OAuth token persistence for the Google calendar client
// ABOUTME: Stores the token as JSON with owner-only permissions
package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

type TokenStore struct {
	Path string
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{Path: path}
}

func (s *TokenStore) Save(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(s.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	return nil
}

// Load returns (nil, nil) when no token has been saved yet.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	return &token, nil
}

func (s *TokenStore) Delete() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// persistingTokenSource reports refreshed tokens to onRefresh and saves them
// to the store. One source may serve concurrent requests.
type persistingTokenSource struct {
	base      oauth2.TokenSource
	store     *TokenStore
	logger    *slog.Logger
	onRefresh func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken == p.last {
		return token, nil
	}
	p.last = token.AccessToken

	if p.onRefresh != nil {
		p.onRefresh(token)
	}
	if p.store != nil {
		if err := p.store.Save(token); err != nil && p.logger != nil {
			p.logger.Warn("failed to persist refreshed token", "error", err)
		}
	}
	return token, nil
}
