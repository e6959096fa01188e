package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"

	token_domain "github.com/huavcjj/followup/internal/domain/token"
)

var (
	ErrNotAuthenticated   = errors.New("google account not authenticated")
	ErrCredentialsMissing = errors.New("google credentials file missing")
	ErrInvalidState       = errors.New("invalid or expired oauth state")
)

const stateTTL = 10 * time.Minute

var Scopes = []string{
	gmail.GmailReadonlyScope,
	calendar.CalendarScope,
}

// Auth owns the OAuth flow and hands out authorized HTTP clients for one account.
type Auth struct {
	config  *oauth2.Config
	tokens  token_domain.TokenRepo
	account string
	now     func() time.Time

	mu     sync.Mutex
	states map[string]time.Time
}

func NewAuth(credentialsPath, redirectURL string, tokens token_domain.TokenRepo, account string) (*Auth, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialsMissing, credentialsPath)
		}
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}
	if redirectURL != "" {
		config.RedirectURL = redirectURL
	}

	return NewAuthWithConfig(config, tokens, account), nil
}

func NewAuthWithConfig(config *oauth2.Config, tokens token_domain.TokenRepo, account string) *Auth {
	return &Auth{
		config:  config,
		tokens:  tokens,
		account: account,
		now:     time.Now,
		states:  make(map[string]time.Time),
	}
}

func (a *Auth) Account() string {
	return a.account
}

// AuthURL returns the consent URL and the one-time state it carries.
func (a *Auth) AuthURL() (string, string) {
	state := uuid.NewString()

	a.mu.Lock()
	now := a.now()
	for s, issued := range a.states {
		if now.Sub(issued) > stateTTL {
			delete(a.states, s)
		}
	}
	a.states[state] = now
	a.mu.Unlock()

	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), state
}

func (a *Auth) consumeState(state string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	issued, ok := a.states[state]
	if !ok {
		return false
	}
	delete(a.states, state)
	return a.now().Sub(issued) <= stateTTL
}

// Exchange trades an authorization code for a token and stores it.
func (a *Auth) Exchange(ctx context.Context, state, code string) error {
	if !a.consumeState(state) {
		return ErrInvalidState
	}

	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	if err := a.tokens.Save(ctx, a.account, token); err != nil {
		return err
	}

	slog.Info("google account connected", "account", a.account)
	return nil
}

func (a *Auth) IsAuthenticated(ctx context.Context) bool {
	_, err := a.tokens.Get(ctx, a.account)
	return err == nil
}

// Client returns an HTTP client whose refreshed tokens are written back to the store.
func (a *Auth) Client(ctx context.Context) (*http.Client, error) {
	token, err := a.tokens.Get(ctx, a.account)
	if err != nil {
		if errors.Is(err, token_domain.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}

	src := &persistingTokenSource{
		base:    a.config.TokenSource(ctx, token),
		tokens:  a.tokens,
		account: a.account,
		last:    token.AccessToken,
	}
	return oauth2.NewClient(ctx, src), nil
}

// Revoke forgets the stored token.
func (a *Auth) Revoke(ctx context.Context) error {
	if err := a.tokens.Delete(ctx, a.account); err != nil {
		return fmt.Errorf("failed to revoke credentials: %w", err)
	}
	slog.Info("google credentials revoked", "account", a.account)
	return nil
}

type persistingTokenSource struct {
	base    oauth2.TokenSource
	tokens  token_domain.TokenRepo
	account string

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token.AccessToken != s.last {
		if err := s.tokens.Save(context.Background(), s.account, token); err != nil {
			slog.Warn("failed to persist refreshed token", "account", s.account, "error", err)
		} else {
			s.last = token.AccessToken
		}
	}
	return token, nil
}

// ClientProvider hands out authorized HTTP clients for provider APIs.
type ClientProvider interface {
	Client(ctx context.Context) (*http.Client, error)
}

var _ ClientProvider = (*Auth)(nil)

// StaticClient serves a fixed HTTP client, for tools that bring their own credentials.
type StaticClient struct {
	HTTP *http.Client
}

func (s StaticClient) Client(context.Context) (*http.Client, error) {
	return s.HTTP, nil
}

// Unavailable fails every client request with Err, for running without
// Google credentials.
type Unavailable struct {
	Err error
}

func (u Unavailable) Client(context.Context) (*http.Client, error) {
	return nil, u.Err
}
