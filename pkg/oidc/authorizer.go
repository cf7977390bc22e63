package oidc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/skratchdot/open-golang/open"
	"golang.org/x/oauth2"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/model"
)

type (
	// Authorizer runs the interactive part of the authorization code flow.
	// Implementations block until the user completed or abandoned the flow.
	Authorizer interface {
		Authorize(ctx context.Context, cfg ProviderConfig) (*model.AuthorizationResult, error)
	}

	// ProviderError is reported by the identity provider via the redirect
	ProviderError struct {
		Code        string
		Description string
	}

	// LoopbackAuthorizer receives the redirect on a local http listener
	LoopbackAuthorizer struct {
		openBrowser BrowserOpener
		httpClient  *http.Client
		prompt      io.Writer
		log         *log.Logger
	}

	callbackResult struct {
		code  string
		state string
		err   error
	}
)

var (
	ErrUserCancelled   = errors.New("authorization cancelled by user")
	ErrStateMismatch   = errors.New("state mismatch in authorization response")
	ErrMissingCode     = errors.New("no authorization code in response")
	ErrInvalidRedirect = errors.New("redirect url must be a http loopback url")
)

var _ Authorizer = (*LoopbackAuthorizer)(nil)

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

// ServerMessage exposes the provider description for user facing messages
func (e *ProviderError) ServerMessage() string {
	return e.Description
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrUserCancelled && e.Code == "access_denied"
}

func NewLoopbackAuthorizer(opts ...Option) *LoopbackAuthorizer {
	ret := &LoopbackAuthorizer{
		openBrowser: open.Run,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		prompt:      io.Discard,
		log:         log.Default().Named("oidc.loopback"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

//nolint:whitespace,funlen // editor/linter issue, many steps
func (a *LoopbackAuthorizer) Authorize(
	ctx context.Context,
	cfg ProviderConfig,
) (*model.AuthorizationResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	redirect, err := url.Parse(cfg.RedirectURL)
	if err != nil || redirect.Scheme != "http" || redirect.Host == "" {
		return nil, ErrInvalidRedirect
	}
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("could not listen for redirect: %w", err)
	}
	// port 0 means: let the os choose
	if redirect.Port() == "0" {
		redirect.Host = net.JoinHostPort(redirect.Hostname(),
			fmt.Sprint(listener.Addr().(*net.TCPAddr).Port))
	}
	pending := &PendingAuthState{
		State:        randStringURL(32),
		CodeVerifier: oauth2.GenerateVerifier(),
		RedirectURL:  redirect.String(),
		CreatedAt:    time.Now(),
	}

	oauth2Config := &oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthorizationEndpoint,
			TokenURL:  cfg.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: pending.RedirectURL,
		Scopes:      cfg.Scopes,
	}

	results := make(chan callbackResult, 1)
	srv := a.startCallbackServer(listener, redirect.Path, pending.State, results)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		//nolint:errcheck // best effort
		srv.Shutdown(shutdownCtx)
	}()

	authOpts := []oauth2.AuthCodeOption{}
	if cfg.UsePKCE {
		authOpts = append(authOpts, oauth2.S256ChallengeOption(pending.CodeVerifier))
	}
	authURL := oauth2Config.AuthCodeURL(pending.State, authOpts...)
	fmt.Fprintf(a.prompt, "Complete the login in your browser:\n%s\n", authURL)
	if err := a.openBrowser(authURL); err != nil {
		a.log.Warn("could not open browser", log.ErrorField(err))
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%w: %w", ErrUserCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("authorization not completed in time: %w", ctx.Err())
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}
	if res.code == "" {
		return nil, ErrMissingCode
	}
	if cfg.SkipCodeExchange {
		return &model.AuthorizationResult{AuthorizationCode: res.code}, nil
	}

	exchangeOpts := []oauth2.AuthCodeOption{}
	if cfg.UsePKCE {
		exchangeOpts = append(exchangeOpts, oauth2.VerifierOption(pending.CodeVerifier))
	}
	token, err := oauth2Config.Exchange(
		context.WithValue(ctx, oauth2.HTTPClient, a.httpClient),
		res.code,
		exchangeOpts...)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	ret := &model.AuthorizationResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		ret.IDToken = idToken
	} else {
		a.log.Warn("no id_token in token response")
	}
	return ret, nil
}

//nolint:whitespace // editor/linter issue
func (a *LoopbackAuthorizer) startCallbackServer(
	listener net.Listener,
	path string,
	state string,
	results chan<- callbackResult,
) *http.Server {
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := callbackResult{code: q.Get("code"), state: q.Get("state")}
		if errCode := q.Get("error"); errCode != "" {
			res.err = &ProviderError{
				Code:        errCode,
				Description: q.Get("error_description"),
			}
			http.Error(w, "Login failed. You can close this window.", http.StatusBadRequest)
		} else {
			if res.state != state {
				// reloads and stray requests must not end the attempt
				a.log.Debug("ignoring callback", log.ErrorField(ErrStateMismatch))
				http.Error(w, ErrStateMismatch.Error(), http.StatusBadRequest)
				return
			}
			fmt.Fprintln(w, "Login completed. You can close this window.")
		}
		// only the first accepted callback counts
		select {
		case results <- res:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("callback server stopped", log.ErrorField(err))
		}
	}()
	return srv
}
