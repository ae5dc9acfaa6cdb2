package auth

import (
	"errors"
	"strings"
)

var (
	ErrNotConfigured = errors.New("authentication not configured")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// Identity is the authenticated caller, whichever token kind it presented
type Identity struct {
	UserID string
	Email  string
	Name   string
	Roles  []string
}

// Authenticator accepts OIDC tokens first and, when a secret is set, legacy
// HMAC tokens second.
type Authenticator struct {
	Verifier TokenVerifier
	Secret   string
}

// Configured reports whether any token kind can be accepted
func (a Authenticator) Configured() bool {
	return a.Verifier != nil || a.Secret != ""
}

// Authenticate resolves tokenString to an identity
func (a Authenticator) Authenticate(tokenString string) (Identity, error) {
	if !a.Configured() {
		return Identity{}, ErrNotConfigured
	}

	if a.Verifier != nil {
		if claims, err := a.Verifier.Validate(tokenString); err == nil {
			return Identity{
				UserID: claims.UserID,
				Email:  claims.Email,
				Name:   firstNonEmpty(claims.Name, claims.PreferredUsername),
				Roles:  claims.Roles,
			}, nil
		}
	}

	if a.Secret != "" {
		if claims, err := ValidateLegacyToken(tokenString, a.Secret); err == nil {
			return Identity{UserID: claims.UserID, Email: claims.Email}, nil
		}
	}

	return Identity{}, ErrInvalidToken
}

// BearerToken extracts the token of a "Bearer <token>" Authorization value
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", false
	}
	return token, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
