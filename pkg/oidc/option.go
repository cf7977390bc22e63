package oidc

import (
	"io"
	"net/http"

	"github.com/mpapenbr/itslogin/log"
)

type (
	// BrowserOpener hands the authorization url over to the user agent
	BrowserOpener func(url string) error
	Option        func(*LoopbackAuthorizer)
)

func WithBrowserOpener(o BrowserOpener) Option {
	return func(a *LoopbackAuthorizer) {
		a.openBrowser = o
	}
}

// WithHTTPClient sets the client used for the token exchange
func WithHTTPClient(c *http.Client) Option {
	return func(a *LoopbackAuthorizer) {
		a.httpClient = c
	}
}

// WithPromptWriter sets where the authorization url is printed for manual use
func WithPromptWriter(w io.Writer) Option {
	return func(a *LoopbackAuthorizer) {
		a.prompt = w
	}
}

func WithLogger(l *log.Logger) Option {
	return func(a *LoopbackAuthorizer) {
		a.log = l
	}
}
