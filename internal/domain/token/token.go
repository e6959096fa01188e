package token

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

var ErrNotFound = errors.New("token not found")

// TokenRepo persists the OAuth token of each connected Google account.
type TokenRepo interface {
	Get(ctx context.Context, account string) (*oauth2.Token, error)
	Save(ctx context.Context, account string, token *oauth2.Token) error
	Delete(ctx context.Context, account string) error
}
