package auth

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"readi/internal/models"
)

// Provider is the Google side of sign-in. *google.OAuth satisfies it.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, tok *oauth2.Token) (*models.GoogleIdentity, error)
}

// Users persists accounts and their Google tokens.
type Users interface {
	UpsertUser(ctx context.Context, identity *models.GoogleIdentity) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	SaveToken(ctx context.Context, userID string, tok *oauth2.Token) error
}

// Service runs the Google sign-in flow and issues API tokens.
type Service struct {
	provider Provider
	users    Users
	issuer   *Issuer
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(logger *slog.Logger, provider Provider, users Users, issuer *Issuer) *Service {
	return &Service{provider: provider, users: users, issuer: issuer, logger: logger}
}

// AuthURL returns the Google consent URL with a freshly signed state.
func (s *Service) AuthURL() (string, error) {
	state, err := s.issuer.SignState()
	if err != nil {
		return "", err
	}
	return s.provider.AuthCodeURL(state), nil
}

// VerifyState checks the state echoed back by Google.
func (s *Service) VerifyState(state string) error {
	return s.issuer.VerifyState(state)
}

// SignIn exchanges the authorization code, records the user and their
// tokens, and returns an API token.
func (s *Service) SignIn(ctx context.Context, code string) (*models.User, string, error) {
	if code == "" {
		return nil, "", fmt.Errorf("no authorization code provided")
	}

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, "", err
	}
	identity, err := s.provider.UserInfo(ctx, tok)
	if err != nil {
		return nil, "", err
	}

	user, err := s.users.UpsertUser(ctx, identity)
	if err != nil {
		return nil, "", fmt.Errorf("failed to save user: %w", err)
	}
	if err := s.users.SaveToken(ctx, user.ID, tok); err != nil {
		return nil, "", fmt.Errorf("failed to save google token: %w", err)
	}

	token, err := s.issuer.Sign(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("User signed in.", "userID", user.ID, "email", user.Email)
	return user, token, nil
}

// Refresh issues a new API token for a still existing user.
func (s *Service) Refresh(ctx context.Context, claims *Claims) (string, error) {
	user, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		return "", fmt.Errorf("could not load user %s: %w", claims.UserID, err)
	}
	return s.issuer.Sign(user.ID, user.Email)
}
