package token

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	token_domain "github.com/huavcjj/followup/internal/domain/token"
)

func TestFileRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	repo := NewFileRepo(path)

	_, err := repo.Get(ctx, "me")
	assert.ErrorIs(t, err, token_domain.ErrNotFound)

	expiry := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, "me", &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}))

	got, err := repo.Get(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.True(t, got.Expiry.Equal(expiry))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, repo.Delete(ctx, "me"))
	_, err = repo.Get(ctx, "me")
	assert.ErrorIs(t, err, token_domain.ErrNotFound)
	assert.NoFileExists(t, path)
}

func TestFileRepoKeepsRefreshTokenOnRefresh(t *testing.T) {
	ctx := context.Background()
	repo := NewFileRepo(filepath.Join(t.TempDir(), "token.json"))

	require.NoError(t, repo.Save(ctx, "me", &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, repo.Save(ctx, "me", &oauth2.Token{AccessToken: "a2"}))

	got, err := repo.Get(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, "r1", got.RefreshToken)
}

func TestFileRepoMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileRepo(path).Get(context.Background(), "me")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, token_domain.ErrNotFound)
}
