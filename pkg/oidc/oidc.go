package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/samber/lo"

	"github.com/mpapenbr/itslogin/log"
)

const (
	DefaultAuthorizationEndpoint = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	DefaultTokenEndpoint         = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	DefaultRedirectURL           = "http://localhost:8765/oauth"
)

// DefaultScopes are requested on every authorization
var DefaultScopes = []string{oidc.ScopeOpenID, "profile", "email"}

//nolint:lll,tagliatelle //readability,external API
type (
	// ProviderConfig describes how to talk to the identity provider
	ProviderConfig struct {
		AuthorizationEndpoint string
		TokenEndpoint         string
		ClientID              string
		RedirectURL           string
		Scopes                []string
		UsePKCE               bool
		SkipCodeExchange      bool
	}
	// Endpoints are the provider urls needed for the authorization code flow
	Endpoints struct {
		AuthorizationEndpoint string
		TokenEndpoint         string
	}
	// PendingAuthState holds the data of an authorization in progress
	PendingAuthState struct {
		State        string    `json:"state"`
		CodeVerifier string    `json:"code_verifier"`
		RedirectURL  string    `json:"redirect_url"`
		CreatedAt    time.Time `json:"created_at"`
	}
	WellKnownOpenIDConfig struct {
		Issuer                        string   `json:"issuer"`
		AuthorizationEndpoint         string   `json:"authorization_endpoint"`
		TokenEndpoint                 string   `json:"token_endpoint"`
		UserinfoEndpoint              string   `json:"userinfo_endpoint"`
		JwksURI                       string   `json:"jwks_uri"`
		ScopesSupported               []string `json:"scopes_supported"`
		ClaimsSupported               []string `json:"claims_supported"`
		CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
		EndSessionEndpoint            string   `json:"end_session_endpoint"`
	}
)

var (
	ErrMissingClientID = errors.New("client id is missing")
	ErrMissingEndpoint = errors.New("authorization or token endpoint is missing")
)

// DefaultEndpoints returns the fixed endpoints used when no issuer is configured
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthorizationEndpoint: DefaultAuthorizationEndpoint,
		TokenEndpoint:         DefaultTokenEndpoint,
	}
}

// NewProviderConfig builds the config used for the interactive authorization
//
//nolint:whitespace // editor/linter issue
func NewProviderConfig(
	ep Endpoints,
	clientID, redirectURL string,
) ProviderConfig {
	return ProviderConfig{
		AuthorizationEndpoint: ep.AuthorizationEndpoint,
		TokenEndpoint:         ep.TokenEndpoint,
		ClientID:              clientID,
		RedirectURL:           redirectURL,
		Scopes:                DefaultScopes,
		UsePKCE:               true,
		SkipCodeExchange:      false,
	}
}

func (c ProviderConfig) Validate() error {
	if c.ClientID == "" {
		return ErrMissingClientID
	}
	if c.AuthorizationEndpoint == "" || c.TokenEndpoint == "" {
		return ErrMissingEndpoint
	}
	return nil
}

// Discover resolves the endpoints of issuerURL via openid discovery.
//
//nolint:whitespace // editor/linter issue
func Discover(ctx context.Context, issuerURL string) (
	Endpoints,
	*WellKnownOpenIDConfig,
	error,
) {
	logger := log.GetFromContext(ctx).Named("oidc")
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return Endpoints{}, nil, fmt.Errorf("discovery failed: %w", err)
	}
	var wellKnown WellKnownOpenIDConfig
	if err := provider.Claims(&wellKnown); err != nil {
		logger.Warn("failed to collect additional oidc metadata", log.ErrorField(err))
	} else if len(wellKnown.CodeChallengeMethodsSupported) > 0 &&
		!lo.Contains(wellKnown.CodeChallengeMethodsSupported, "S256") {
		logger.Warn("provider does not announce S256 code challenge support",
			log.Strings("methods", wellKnown.CodeChallengeMethodsSupported))
	}
	ep := provider.Endpoint()
	logger.Debug("discovered endpoints",
		log.String("authorization", ep.AuthURL),
		log.String("token", ep.TokenURL))
	return Endpoints{
		AuthorizationEndpoint: ep.AuthURL,
		TokenEndpoint:         ep.TokenURL,
	}, &wellKnown, nil
}

func randStringURL(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)[:n]
}
