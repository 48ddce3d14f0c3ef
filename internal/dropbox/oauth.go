package dropbox

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Endpoint is the Dropbox OAuth2 endpoint. Dropbox expects client credentials
// in the form body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://www.dropbox.com/oauth2/authorize",
	TokenURL:  "https://api.dropboxapi.com/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// OAuthConfig builds the oauth2 configuration for an app. The secret may be
// empty for apps authorized through PKCE.
func OAuthConfig(appKey, appSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     appKey,
		ClientSecret: appSecret,
		Endpoint:     Endpoint,
	}
}

// NewHTTPClient returns an HTTP client that mints short-lived access tokens
// from a long-lived refresh token. Each request is bounded by timeout.
func NewHTTPClient(ctx context.Context, conf *oauth2.Config, refreshToken string, timeout time.Duration) *http.Client {
	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = timeout
	return client
}
