package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type memoryTokens struct {
	mu     sync.Mutex
	tokens map[string]*oauth2.Token
	saves  int
}

func (m *memoryTokens) Token(_ context.Context, userID string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[userID]
	if !ok {
		return nil, assert.AnError
	}
	cp := *tok
	return &cp, nil
}

func (m *memoryTokens) SaveToken(_ context.Context, userID string, tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = tok
	m.saves++
	return nil
}

func TestFactory_RefreshesAndPersistsExpiringToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
			assert.Equal(t, "r1", r.Form.Get("refresh_token"))
			writeJSON(t, w, map[string]any{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600})
		case "/calendars/primary/events":
			assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			writeJSON(t, w, calendar.Events{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tokens := &memoryTokens{tokens: map[string]*oauth2.Token{
		// Still valid, but inside the refresh buffer.
		"u1": {AccessToken: "stale", RefreshToken: "r1", TokenType: "Bearer", Expiry: time.Now().Add(time.Minute)},
	}}
	oauth := NewOAuthWithConfig(&oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL + "/token"},
	}, option.WithEndpoint(srv.URL+"/"))

	f := NewFactory(discardLogger(), oauth, tokens)
	c, err := f.Calendar(context.Background(), "u1")
	require.NoError(t, err)

	_, err = c.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)

	saved, err := tokens.Token(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
	assert.Equal(t, 1, tokens.saves)
}

func TestFactory_UnknownUser(t *testing.T) {
	f := NewFactory(discardLogger(), NewOAuthWithConfig(&oauth2.Config{}), &memoryTokens{tokens: map[string]*oauth2.Token{}})
	_, err := f.Gmail(context.Background(), "nobody")
	assert.Error(t, err)
}

func TestOAuth_AuthCodeURL(t *testing.T) {
	o, err := NewOAuth("id", "secret", "http://localhost/callback")
	require.NoError(t, err)

	u := o.AuthCodeURL("state-1")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
	assert.Contains(t, u, "state=state-1")
	assert.Contains(t, u, "gmail.readonly")
}

func TestOAuth_ExchangeAndUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeJSON(t, w, map[string]any{"access_token": "a1", "refresh_token": "r1", "token_type": "Bearer", "expires_in": 3600})
		case "/oauth2/v2/userinfo":
			assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
			writeJSON(t, w, map[string]any{"id": "g-1", "email": "ada@example.com", "name": "Ada"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	o := NewOAuthWithConfig(&oauth2.Config{
		ClientID: "id",
		Endpoint: oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
	}, option.WithEndpoint(srv.URL+"/"))

	tok, err := o.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "r1", tok.RefreshToken)

	id, err := o.UserInfo(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "g-1", id.ID)
	assert.Equal(t, "ada@example.com", id.Email)
}
