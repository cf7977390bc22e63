//nolint:funlen // ok for tests
package authservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/itslogin/pkg/model"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func TestClient_FetchClientConfig(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     *model.OAuthClientConfig
		wantErr  error
		wantText string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"clientId":"abc"}`,
			want:   &model.OAuthClientConfig{ClientID: "abc"},
		},
		{
			name:    "empty client id",
			status:  http.StatusOK,
			body:    `{"clientId":""}`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:    "no json",
			status:  http.StatusOK,
			body:    `<html></html>`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:     "server error with message",
			status:   http.StatusInternalServerError,
			body:     `{"error":"maintenance"}`,
			wantText: "maintenance",
		},
		{
			name:     "server error without body",
			status:   http.StatusBadGateway,
			body:     ``,
			wantText: "auth service responded with status 502",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, PathStartOAuthFlow, r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			got, err := c.FetchClientConfig(context.Background())
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantText != "":
				var se *ServerError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.status, se.StatusCode)
				assert.EqualError(t, err, tt.wantText)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClient_Verify(t *testing.T) {
	var received map[string]string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathVerifyAuthCode, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"status":"success","authId":"u-42","uid":"7"}`))
	})

	got, err := c.Verify(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"email": "a@b.com"}, received)
	assert.True(t, got.Succeeded())
	assert.Equal(t, "u-42", got.AuthID)
	assert.Equal(t, "7", got.UID)
}

func TestClient_Verify_FailureStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"failure","error":"unregistered"}`))
	})

	got, err := c.Verify(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.False(t, got.Succeeded())
	assert.Equal(t, "unregistered", got.Error)
}

func TestClient_Verify_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, err := New(srv.URL).Verify(context.Background(), "a@b.com")
	require.Error(t, err)
	var se *ServerError
	assert.False(t, errors.As(err, &se))
}

func TestExtractErrorField(t *testing.T) {
	assert.Equal(t, "x", extractErrorField([]byte(`{"error":"x"}`)))
	assert.Equal(t, `{"code":3}`, extractErrorField([]byte(`{"error":{"code":3}}`)))
	assert.Equal(t, "", extractErrorField([]byte(`{"status":"failure"}`)))
	assert.Equal(t, "", extractErrorField([]byte(`not json`)))
}
