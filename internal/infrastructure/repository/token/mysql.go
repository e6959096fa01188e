package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	token_domain "github.com/huavcjj/followup/internal/domain/token"
)

type mysqlRepo struct {
	db *sql.DB
}

var _ token_domain.TokenRepo = (*mysqlRepo)(nil)

func NewMySQLRepo(dbConn *sql.DB) token_domain.TokenRepo {
	return &mysqlRepo{db: dbConn}
}

func (r *mysqlRepo) Get(ctx context.Context, account string) (*oauth2.Token, error) {
	var (
		accessToken  string
		refreshToken sql.NullString
		tokenType    sql.NullString
		expiresAt    sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, token_type, expires_at FROM oauth_tokens WHERE account = ?`,
		account,
	).Scan(&accessToken, &refreshToken, &tokenType, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, token_domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	token := &oauth2.Token{AccessToken: accessToken}
	if refreshToken.Valid {
		token.RefreshToken = refreshToken.String
	}
	if tokenType.Valid {
		token.TokenType = tokenType.String
	}
	if expiresAt.Valid {
		token.Expiry = time.Unix(expiresAt.Int64, 0)
	}

	return token, nil
}

func (r *mysqlRepo) Save(ctx context.Context, account string, token *oauth2.Token) error {
	var refreshToken, tokenType sql.NullString
	var expiresAt sql.NullInt64

	if token.RefreshToken != "" {
		refreshToken = sql.NullString{String: token.RefreshToken, Valid: true}
	}
	if token.TokenType != "" {
		tokenType = sql.NullString{String: token.TokenType, Valid: true}
	}
	if !token.Expiry.IsZero() {
		expiresAt = sql.NullInt64{Int64: token.Expiry.Unix(), Valid: true}
	}

	// A refreshed token may come back without a refresh token; keep the stored one.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (account, access_token, refresh_token, token_type, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			access_token = VALUES(access_token),
			refresh_token = COALESCE(VALUES(refresh_token), refresh_token),
			token_type = VALUES(token_type),
			expires_at = VALUES(expires_at)`,
		account, token.AccessToken, refreshToken, tokenType, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}

func (r *mysqlRepo) Delete(ctx context.Context, account string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE account = ?`, account); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
