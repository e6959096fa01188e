package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"

	token_domain "github.com/huavcjj/followup/internal/domain/token"
)

// fileRepo keeps tokens in a single JSON document keyed by account.
type fileRepo struct {
	path string
	mu   sync.Mutex
}

var _ token_domain.TokenRepo = (*fileRepo)(nil)

func NewFileRepo(path string) token_domain.TokenRepo {
	return &fileRepo{path: path}
}

func (r *fileRepo) Get(ctx context.Context, account string) (*oauth2.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokens, err := r.read()
	if err != nil {
		return nil, err
	}
	token, ok := tokens[account]
	if !ok {
		return nil, token_domain.ErrNotFound
	}
	return token, nil
}

func (r *fileRepo) Save(ctx context.Context, account string, token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokens, err := r.read()
	if err != nil {
		return err
	}

	saved := *token
	if prev, ok := tokens[account]; ok && saved.RefreshToken == "" {
		saved.RefreshToken = prev.RefreshToken
	}
	tokens[account] = &saved

	return r.write(tokens)
}

func (r *fileRepo) Delete(ctx context.Context, account string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokens, err := r.read()
	if err != nil {
		return err
	}
	if _, ok := tokens[account]; !ok {
		return nil
	}
	delete(tokens, account)

	if len(tokens) == 0 {
		if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove token file: %w", err)
		}
		return nil
	}
	return r.write(tokens)
}

func (r *fileRepo) read() (map[string]*oauth2.Token, error) {
	tokens := map[string]*oauth2.Token{}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tokens, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return tokens, nil
}

func (r *fileRepo) write(tokens map[string]*oauth2.Token) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}
