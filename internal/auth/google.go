package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint.
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleAuthenticator runs the Google OAuth2 authorization code flow.
type GoogleAuthenticator struct {
	config      *oauth2.Config
	userInfoURL string
}

// GoogleOption configures a GoogleAuthenticator.
type GoogleOption func(*GoogleAuthenticator)

// WithEndpoint overrides the OAuth2 endpoint.
func WithEndpoint(ep oauth2.Endpoint) GoogleOption {
	return func(a *GoogleAuthenticator) {
		a.config.Endpoint = ep
	}
}

// WithUserInfoURL overrides the userinfo endpoint.
func WithUserInfoURL(u string) GoogleOption {
	return func(a *GoogleAuthenticator) {
		a.userInfoURL = u
	}
}

// NewGoogle creates an authenticator. redirectURL is the absolute callback
// URL registered with Google.
func NewGoogle(clientID, clientSecret, redirectURL string, opts ...GoogleOption) (*GoogleAuthenticator, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}
	a := &GoogleAuthenticator{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: GoogleUserInfoURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// AuthURL returns the consent page URL for state.
func (a *GoogleAuthenticator) AuthURL(state string) string {
	return a.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token.
func (a *GoogleAuthenticator) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code for token: %w", err)
	}
	return token, nil
}

// Identity fetches the signed-in user's profile.
func (a *GoogleAuthenticator) Identity(ctx context.Context, token *oauth2.Token) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userInfoURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := a.config.Client(ctx, token).Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("fetching user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Identity{}, fmt.Errorf("reading user info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("user info: unexpected status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return Identity{}, fmt.Errorf("parsing user info: %w", err)
	}
	return id, nil
}
