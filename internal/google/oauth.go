package google

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"readi/internal/models"
)

const (
	credentialsFile = "credentials.json"
)

// Scopes requested at sign-in: identity plus read access to calendar and mail.
var Scopes = []string{
	oauth2api.UserinfoEmailScope,
	oauth2api.UserinfoProfileScope,
	calendar.CalendarReadonlyScope,
	gmail.GmailReadonlyScope,
}

// OAuth wraps the OAuth2 client configuration for Google sign-in.
// Token exchange and refresh are delegated to golang.org/x/oauth2.
type OAuth struct {
	config     *oauth2.Config
	apiOptions []option.ClientOption
}

// NewOAuth builds the OAuth configuration.
// It prioritizes the client ID and secret over a local credentials.json file.
func NewOAuth(clientID, clientSecret, redirectURL string) (*OAuth, error) {
	config, err := getOAuthConfig(clientID, clientSecret, redirectURL)
	if err != nil {
		return nil, err
	}
	return &OAuth{config: config}, nil
}

// NewOAuthWithConfig is used when the caller already has a config, e.g. in
// tests pointing at a fake token endpoint. apiOptions are appended to every
// Google API service created from this configuration.
func NewOAuthWithConfig(config *oauth2.Config, apiOptions ...option.ClientOption) *OAuth {
	return &OAuth{config: config, apiOptions: apiOptions}
}

// AuthCodeURL returns the consent page URL. Consent is forced so that Google
// always returns a refresh token.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("no access token received from Google")
	}
	return tok, nil
}

// UserInfo fetches the Google account behind tok.
func (o *OAuth) UserInfo(ctx context.Context, tok *oauth2.Token) (*models.GoogleIdentity, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(o.config.TokenSource(ctx, tok))}, o.apiOptions...)
	service, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth2 service: %w", err)
	}

	info, err := service.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if info.Email == "" || info.Id == "" {
		return nil, fmt.Errorf("invalid user info received from Google")
	}
	return &models.GoogleIdentity{ID: info.Id, Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

// client returns an HTTP client authorized by src.
func (o *OAuth) client(ctx context.Context, src oauth2.TokenSource) *http.Client {
	return oauth2.NewClient(ctx, src)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes explicit values over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret, redirectURL string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	if redirectURL != "" {
		config.RedirectURL = redirectURL
	}
	return config, nil
}
