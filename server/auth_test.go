package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestSignInDisabled(t *testing.T) {
	_, _, h := newTestServer(t, testConfig())
	for _, path := range []string{EndPointGoogleLogin, EndPointGoogleReturn} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestGoogleSignIn(t *testing.T) {
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "1234",
		"email": "jo@example.org",
		"name":  "Jo",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}))
	defer tokenServer.Close()

	cfg := testConfig()
	cfg.OAuthClientID = "client"
	cfg.OAuthClientSecret = "secret"
	cfg.OAuthRedirectURL = "http://localhost:8080/auth/google/callback"
	s, _, h := newTestServer(t, cfg)
	s.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:   tokenServer.URL + "/auth",
		TokenURL:  tokenServer.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, EndPointGoogleLogin, nil))
	require.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == oauthStateCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	// Mismatched state
	req := httptest.NewRequest(http.MethodGet, EndPointGoogleReturn+"?state=other&code=the-code", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, EndPointGoogleReturn+"?state="+state+"&code=the-code", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Profile Profile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, Profile{Subject: "1234", Email: "jo@example.org", Name: "Jo"}, body.Profile)
}

func TestProfileFromTokenRequiresIDToken(t *testing.T) {
	_, err := profileFromToken(&oauth2.Token{AccessToken: "a"})
	assert.Error(t, err)
}
