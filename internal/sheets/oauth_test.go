package sheets

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestAuthenticateOAuth2Interactive(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"access","refresh_token":"refresh","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenServer.Close()

	tokenFile := filepath.Join(t.TempDir(), "token.json")

	token, err := AuthenticateOAuth2Interactive(context.Background(), OAuth2Config{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenFile:    tokenFile,
		CallbackAddr: "127.0.0.1:0",
		Timeout:      5 * time.Second,
		Endpoint:     oauth2.Endpoint{AuthURL: tokenServer.URL + "/auth", TokenURL: tokenServer.URL + "/token"},
		OpenURL: func(authURL string) {
			u, err := url.Parse(authURL)
			if !assert.NoError(t, err) {
				return
			}
			q := u.Query()
			callback := q.Get("redirect_uri") + "?code=the-code&state=" + url.QueryEscape(q.Get("state"))
			go func() {
				resp, err := http.Get(callback) //nolint:noctx // test callback
				if err == nil {
					_ = resp.Body.Close()
				}
			}()
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "refresh", token.RefreshToken)

	saved, err := LoadToken(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "refresh", saved.RefreshToken)
}

func TestAuthenticateOAuth2Interactive_StateMismatch(t *testing.T) {
	_, err := AuthenticateOAuth2Interactive(context.Background(), OAuth2Config{
		ClientID:     "client",
		ClientSecret: "secret",
		CallbackAddr: "127.0.0.1:0",
		Timeout:      5 * time.Second,
		Endpoint:     oauth2.Endpoint{AuthURL: "http://127.0.0.1/auth", TokenURL: "http://127.0.0.1/token"},
		OpenURL: func(authURL string) {
			u, _ := url.Parse(authURL)
			callback := u.Query().Get("redirect_uri") + "?code=x&state=forged"
			go func() {
				resp, err := http.Get(callback) //nolint:noctx // test callback
				if err == nil {
					_ = resp.Body.Close()
				}
			}()
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")
}

func TestAuthenticateOAuth2Interactive_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := AuthenticateOAuth2Interactive(ctx, OAuth2Config{
		CallbackAddr: "127.0.0.1:0",
		OpenURL:      func(string) { cancel() },
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadToken_Missing(t *testing.T) {
	_, err := LoadToken(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
