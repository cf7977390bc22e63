package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
)

func TestNewProviderConfig(t *testing.T) {
	got := NewProviderConfig(DefaultEndpoints(), "abc", DefaultRedirectURL)
	want := ProviderConfig{
		AuthorizationEndpoint: DefaultAuthorizationEndpoint,
		TokenEndpoint:         DefaultTokenEndpoint,
		ClientID:              "abc",
		RedirectURL:           DefaultRedirectURL,
		Scopes:                []string{"openid", "profile", "email"},
		UsePKCE:               true,
	}
	assert.DeepEqual(t, want, got)
	assert.NilError(t, got.Validate())

	got.TokenEndpoint = ""
	assert.ErrorIs(t, got.Validate(), ErrMissingEndpoint)
}

func TestDiscover(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/openid-configuration", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck // test
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                srv.URL,
			"authorization_endpoint":                srv.URL + "/authorize",
			"token_endpoint":                        srv.URL + "/token",
			"jwks_uri":                              srv.URL + "/keys",
			"code_challenge_methods_supported":      []string{"S256"},
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	}))
	defer srv.Close()

	ep, wellKnown, err := Discover(context.Background(), srv.URL)
	assert.NilError(t, err)
	assert.DeepEqual(t, Endpoints{
		AuthorizationEndpoint: srv.URL + "/authorize",
		TokenEndpoint:         srv.URL + "/token",
	}, ep)
	assert.Assert(t, cmp.Equal([]string{"S256"}, wellKnown.CodeChallengeMethodsSupported))
}

func TestDiscover_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, _, err := Discover(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "discovery failed")
}
