package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// refreshBuffer is how long before expiry an access token is refreshed.
const refreshBuffer = 5 * time.Minute

// TokenStore loads and persists per-user Google tokens.
type TokenStore interface {
	Token(ctx context.Context, userID string) (*oauth2.Token, error)
	SaveToken(ctx context.Context, userID string, tok *oauth2.Token) error
}

// Factory builds authorized Google API clients for stored users.
type Factory struct {
	oauth  *OAuth
	tokens TokenStore
	logger *slog.Logger
}

// NewFactory creates a Factory.
func NewFactory(logger *slog.Logger, oauth *OAuth, tokens TokenStore) *Factory {
	return &Factory{oauth: oauth, tokens: tokens, logger: logger}
}

// Calendar returns a Calendar client acting as userID.
func (f *Factory) Calendar(ctx context.Context, userID string) (*CalendarClient, error) {
	client, err := f.httpClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(ctx, f.logger, client, f.oauth.apiOptions...)
}

// Gmail returns a Gmail client acting as userID.
func (f *Factory) Gmail(ctx context.Context, userID string) (*GmailClient, error) {
	client, err := f.httpClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewGmailClient(ctx, f.logger, client, f.oauth.apiOptions...)
}

func (f *Factory) httpClient(ctx context.Context, userID string) (*http.Client, error) {
	stored, err := f.tokens.Token(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("could not load google token for user %s: %w", userID, err)
	}

	// The refresher starts without an access token so it always hits the token endpoint.
	refresher := f.oauth.config.TokenSource(ctx, &oauth2.Token{RefreshToken: stored.RefreshToken})
	src := &persistingTokenSource{
		ctx:    ctx,
		userID: userID,
		store:  f.tokens,
		logger: f.logger,
		base:   oauth2.ReuseTokenSourceWithExpiry(stored, refresher, refreshBuffer),
		last:   stored.AccessToken,
	}
	return f.oauth.client(ctx, src), nil
}

// persistingTokenSource writes refreshed tokens back to the store.
type persistingTokenSource struct {
	ctx    context.Context
	userID string
	store  TokenStore
	logger *slog.Logger
	base   oauth2.TokenSource

	mu   sync.Mutex
	last string
}

// Token implements oauth2.TokenSource.
func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh google token: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := p.store.SaveToken(p.ctx, p.userID, tok); err != nil {
			// The fresh token is still usable for this request.
			p.logger.Warn("Failed to persist refreshed token.", "userID", p.userID, "error", err)
		} else {
			p.logger.Debug("Persisted refreshed Google token.", "userID", p.userID)
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
