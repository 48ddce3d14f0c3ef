package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-review/backend/internal/dropbox"
)

func fakeTokenServer(t *testing.T, refresh string, got *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		*got = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"sl.abc","token_type":"bearer","expires_in":14400,"refresh_token":"` + refresh + `"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthorizer_ExchangesCodeWithVerifier(t *testing.T) {
	var form url.Values
	srv := fakeTokenServer(t, "refresh-1", &form)

	conf := dropbox.OAuthConfig("key", "secret")
	conf.Endpoint.TokenURL = srv.URL

	var out bytes.Buffer
	a := &authorizer{conf: conf, in: strings.NewReader("  the-code \n"), out: &out}

	token, err := a.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", token.RefreshToken)

	assert.Equal(t, "the-code", form.Get("code"))
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.NotEmpty(t, form.Get("code_verifier"))
	assert.Equal(t, "key", form.Get("client_id"))

	printed := out.String()
	assert.Contains(t, printed, "token_access_type=offline")
	assert.Contains(t, printed, "code_challenge_method=S256")
}

func TestAuthorizer_RequiresCode(t *testing.T) {
	a := &authorizer{conf: dropbox.OAuthConfig("key", ""), in: strings.NewReader("\n"), out: &bytes.Buffer{}}
	_, err := a.run(context.Background())
	assert.Error(t, err)
}

func TestAuthorizer_RejectsMissingRefreshToken(t *testing.T) {
	var form url.Values
	srv := fakeTokenServer(t, "", &form)

	conf := dropbox.OAuthConfig("key", "secret")
	conf.Endpoint.TokenURL = srv.URL

	a := &authorizer{conf: conf, in: strings.NewReader("code\n"), out: &bytes.Buffer{}}
	_, err := a.run(context.Background())
	assert.ErrorContains(t, err, "no refresh token")
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()

	v, err := readConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, v.AllKeys())

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dropbox:\n  app_key: from-file\nfolders:\n  pending: /pending\n"), 0o600))

	v, err = readConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", v.GetString("dropbox.app_key"))

	v.Set("dropbox.refresh_token", "r")
	require.NoError(t, v.WriteConfigAs(path))

	written, err := readConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "r", written.GetString("dropbox.refresh_token"))
	assert.Equal(t, "/pending", written.GetString("folders.pending"))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
