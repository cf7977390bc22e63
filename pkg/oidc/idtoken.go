package oidc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mpapenbr/itslogin/pkg/model"
)

type (
	// Decoder extracts the identity from a raw id token
	Decoder interface {
		Decode(rawIDToken string) (*model.DecodedIdentity, error)
	}
	// DecoderFunc adapts a plain function to Decoder
	DecoderFunc func(rawIDToken string) (*model.DecodedIdentity, error)
)

var (
	ErrMissingIDToken = errors.New("no idToken received")
	ErrMalformedToken = errors.New("malformed idToken")
	ErrMissingEmail   = errors.New("email not found in the idToken")
)

func (f DecoderFunc) Decode(rawIDToken string) (*model.DecodedIdentity, error) {
	return f(rawIDToken)
}

// DecodeIDToken reads the claims of rawIDToken without verifying the signature.
// The signature is checked by the auth service during verification.
func DecodeIDToken(rawIDToken string) (*model.DecodedIdentity, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return nil, ErrMissingIDToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawIDToken, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return nil, ErrMissingEmail
	}
	return &model.DecodedIdentity{Email: email, Claims: claims}, nil
}
