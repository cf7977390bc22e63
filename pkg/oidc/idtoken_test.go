package oidc

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("not-known-to-the-client"))
	require.NoError(t, err)
	return tok
}

func TestDecodeIDToken(t *testing.T) {
	tests := []struct {
		name      string
		raw       func(t *testing.T) string
		wantEmail string
		wantErr   error
	}{
		{
			name: "email present",
			raw: func(t *testing.T) string {
				return signedToken(t, jwt.MapClaims{"email": "a@b.com", "name": "A"})
			},
			wantEmail: "a@b.com",
		},
		{
			name:    "empty token",
			raw:     func(t *testing.T) string { return "" },
			wantErr: ErrMissingIDToken,
		},
		{
			name: "no email claim",
			raw: func(t *testing.T) string {
				return signedToken(t, jwt.MapClaims{"preferred_username": "a@b.com"})
			},
			wantErr: ErrMissingEmail,
		},
		{
			name: "email not a string",
			raw: func(t *testing.T) string {
				return signedToken(t, jwt.MapClaims{"email": 42})
			},
			wantErr: ErrMissingEmail,
		},
		{
			name:    "garbage",
			raw:     func(t *testing.T) string { return "a.b" },
			wantErr: ErrMalformedToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeIDToken(tt.raw(t))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmail, got.Email)
			assert.Equal(t, tt.wantEmail, got.Claims["email"])
		})
	}
}

func TestDecoderFunc(t *testing.T) {
	var d Decoder = DecoderFunc(DecodeIDToken)
	_, err := d.Decode("")
	assert.ErrorIs(t, err, ErrMissingIDToken)
}
