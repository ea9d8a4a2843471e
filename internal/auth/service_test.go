package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"readi/internal/models"
)

type fakeProvider struct {
	exchangeErr error
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: "refresh"}, nil
}

func (p *fakeProvider) UserInfo(context.Context, *oauth2.Token) (*models.GoogleIdentity, error) {
	return &models.GoogleIdentity{ID: "g-1", Email: "ada@example.com", Name: "Ada"}, nil
}

type fakeUsers struct {
	users  map[string]*models.User
	tokens map[string]*oauth2.Token
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*models.User{}, tokens: map[string]*oauth2.Token{}}
}

func (f *fakeUsers) UpsertUser(_ context.Context, id *models.GoogleIdentity) (*models.User, error) {
	u := &models.User{ID: "user-" + id.ID, Email: id.Email, GoogleID: id.ID, Name: id.Name}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (f *fakeUsers) SaveToken(_ context.Context, userID string, tok *oauth2.Token) error {
	f.tokens[userID] = tok
	return nil
}

func newTestService(t *testing.T, p *fakeProvider, users *fakeUsers) *Service {
	t.Helper()
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), p, users, newTestIssuer(t))
}

func TestService_AuthURLCarriesVerifiableState(t *testing.T) {
	s := newTestService(t, &fakeProvider{}, newFakeUsers())

	raw, err := s.AuthURL()
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.NoError(t, s.VerifyState(u.Query().Get("state")))
	assert.Error(t, s.VerifyState("forged"))
}

func TestService_SignIn(t *testing.T) {
	users := newFakeUsers()
	s := newTestService(t, &fakeProvider{}, users)

	user, token, err := s.SignIn(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "user-g-1", user.ID)
	assert.Equal(t, "access-abc", users.tokens[user.ID].AccessToken)

	claims, err := s.issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	refreshed, err := s.Refresh(context.Background(), claims)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed)

	_, err = s.Refresh(context.Background(), &Claims{UserID: "gone"})
	assert.Error(t, err)
}

func TestService_SignInErrors(t *testing.T) {
	s := newTestService(t, &fakeProvider{exchangeErr: errors.New("bad code")}, newFakeUsers())

	_, _, err := s.SignIn(context.Background(), "")
	assert.Error(t, err)

	_, _, err = s.SignIn(context.Background(), "abc")
	assert.ErrorContains(t, err, "bad code")
}
