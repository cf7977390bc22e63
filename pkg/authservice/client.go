package authservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/model"
)

const (
	PathStartOAuthFlow = "/auth/startOAuthFlowApp"
	PathVerifyAuthCode = "/auth/verifyAuthCode"

	DefaultBaseURL = "https://its-siesgst-auth.onrender.com"
)

type (
	Option func(*Client)

	// Client talks to the backend auth service
	Client struct {
		baseURL    string
		httpClient *http.Client
		log        *log.Logger
	}

	// ServerError is returned when the auth service answers with a non-2xx status.
	ServerError struct {
		StatusCode int
		Message    string // value of the "error" field, if any
	}
)

var (
	ErrMalformedResponse = errors.New("malformed response")
	errorPath            = jp.MustParseString("$.error")
)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.httpClient.Timeout = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(cl *Client) {
		cl.log = l
	}
}

func New(baseURL string, opts ...Option) *Client {
	ret := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.Default().Named("authservice"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("auth service responded with status %d", e.StatusCode)
}

// ServerMessage returns the error reported by the server (may be empty)
func (e *ServerError) ServerMessage() string {
	return e.Message
}

// FetchClientConfig requests the OAuth client configuration for the app.
//
//nolint:whitespace // editor/linter issue
func (c *Client) FetchClientConfig(ctx context.Context) (
	*model.OAuthClientConfig,
	error,
) {
	var ret model.OAuthClientConfig
	if err := c.post(ctx, PathStartOAuthFlow, struct{}{}, &ret); err != nil {
		return nil, err
	}
	if ret.ClientID == "" {
		return nil, fmt.Errorf("%w: clientId is empty", ErrMalformedResponse)
	}
	c.log.Debug("received client config", log.String("clientId", ret.ClientID))
	return &ret, nil
}

// Verify asks the auth service to map the email to an authId.
// The caller has to check the status of the returned result.
//
//nolint:whitespace // editor/linter issue
func (c *Client) Verify(ctx context.Context, email string) (
	*model.VerificationResult,
	error,
) {
	var ret model.VerificationResult
	body := map[string]string{"email": email}
	if err := c.post(ctx, PathVerifyAuthCode, body, &ret); err != nil {
		return nil, err
	}
	c.log.Debug("received verification result",
		log.String("status", ret.Status),
		log.String("uid", ret.UID))
	return &ret, nil
}

//nolint:whitespace // editor/linter issue
func (c *Client) post(
	ctx context.Context,
	path string,
	reqBody, respBody any,
) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	c.log.Debug("auth service call",
		log.String("path", path),
		log.Int("status", resp.StatusCode),
		log.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    extractErrorField(payload),
		}
	}
	if err := json.Unmarshal(payload, respBody); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// extractErrorField returns the top level "error" value of a json document.
// Non-string values are rendered as json.
func extractErrorField(payload []byte) string {
	doc, err := oj.Parse(payload)
	if err != nil {
		return ""
	}
	found := errorPath.Get(doc)
	if len(found) == 0 || found[0] == nil {
		return ""
	}
	if s, ok := found[0].(string); ok {
		return s
	}
	return oj.JSON(found[0])
}
