package model

import (
	"fmt"

	"github.com/samber/lo"
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Roles lists the roles a user may log in as
var Roles = []Role{RoleTeacher, RoleStudent}

//nolint:tagliatelle // external API
type (
	// OAuthClientConfig is provided by the auth service once per session
	OAuthClientConfig struct {
		ClientID string `json:"clientId"`
	}

	// AuthorizationResult is produced by the interactive authorization step
	AuthorizationResult struct {
		IDToken      string
		AccessToken  string
		RefreshToken string
		TokenType    string

		// only set if the code exchange was skipped
		AuthorizationCode string
	}

	// DecodedIdentity holds the (unverified) claims of an id token
	DecodedIdentity struct {
		Email  string
		Claims map[string]any
	}

	// VerificationResult is returned by the auth service verification call
	VerificationResult struct {
		Status string `json:"status"`
		AuthID string `json:"authId"`
		UID    string `json:"uid,omitempty"`
		Error  string `json:"error,omitempty"`
	}
)

const VerificationStatusSuccess = "success"

func (r Role) Valid() bool {
	return lo.Contains(Roles, r)
}

func (r Role) String() string {
	return string(r)
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (v *VerificationResult) Succeeded() bool {
	return v != nil && v.Status == VerificationStatusSuccess
}
