package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/clipdeck/api/internal/config"
)

var (
	ErrNoIssuer        = errors.New("oidc issuer is required")
	ErrInvalidAudience = errors.New("token audience does not match client id")
)

// TokenVerifier validates bearer tokens issued by an identity provider
type TokenVerifier interface {
	Validate(tokenString string) (*Claims, error)
	Close() error
}

// Claims are the identity claims of an OIDC access token
type Claims struct {
	UserID            string   `json:"sub"`
	Email             string   `json:"email,omitempty"`
	EmailVerified     bool     `json:"email_verified,omitempty"`
	Name              string   `json:"name,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Roles             []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWKSVerifier checks RS/ES signed tokens against the issuer's published key set
type JWKSVerifier struct {
	keys     keyfunc.Keyfunc
	issuer   string
	audience string
	leeway   time.Duration
}

// VerifierOption configures NewJWKSVerifier
type VerifierOption func(*verifierSettings)

type verifierSettings struct {
	httpClient *http.Client
	timeout    time.Duration
	leeway     time.Duration
}

// WithDiscoveryClient sets the HTTP client used for OIDC discovery
func WithDiscoveryClient(c *http.Client) VerifierOption {
	return func(s *verifierSettings) { s.httpClient = c }
}

// WithLeeway tolerates clock skew on exp, nbf and iat
func WithLeeway(d time.Duration) VerifierOption {
	return func(s *verifierSettings) { s.leeway = d }
}

// ResolveIssuer returns the configured issuer, or https://<domain> when only
// the provider domain is set.
func ResolveIssuer(cfg *config.OIDCConfig) (string, error) {
	issuer := strings.TrimSuffix(cfg.Issuer, "/")
	if issuer == "" && cfg.Domain != "" {
		domain := strings.TrimSuffix(cfg.Domain, "/")
		if !strings.Contains(domain, "://") {
			domain = "https://" + domain
		}
		issuer = domain
	}
	if issuer == "" {
		return "", ErrNoIssuer
	}
	return issuer, nil
}

// NewJWKSVerifier discovers the issuer's key set. A configured client id is
// enforced as audience.
func NewJWKSVerifier(cfg *config.OIDCConfig, opts ...VerifierOption) (*JWKSVerifier, error) {
	settings := verifierSettings{
		httpClient: http.DefaultClient,
		timeout:    30 * time.Second,
		leeway:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	issuer, err := ResolveIssuer(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), settings.timeout)
	defer cancel()

	doc, err := discover(ctx, settings.httpClient, issuer)
	if err != nil {
		return nil, err
	}

	keys, err := keyfunc.NewDefaultCtx(ctx, []string{doc.JWKSURI})
	if err != nil {
		return nil, fmt.Errorf("failed to load key set from %s: %w", doc.JWKSURI, err)
	}

	return &JWKSVerifier{
		keys:     keys,
		issuer:   issuer,
		audience: cfg.ClientID,
		leeway:   settings.leeway,
	}, nil
}

type discoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// discover reads the OpenID discovery document of issuer
func discover(ctx context.Context, hc *http.Client, issuer string) (*discoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}
	if doc.JWKSURI == "" {
		return nil, errors.New("discovery document has no jwks_uri")
	}
	if doc.Issuer != "" && strings.TrimSuffix(doc.Issuer, "/") != issuer {
		return nil, fmt.Errorf("discovery issuer %q does not match %q", doc.Issuer, issuer)
	}
	return &doc, nil
}

// Validate checks signature, issuer, expiry and audience of tokenString
func (v *JWKSVerifier) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keys.Keyfunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	if err := checkAudience(claims, v.audience); err != nil {
		return nil, err
	}
	return claims, nil
}

func checkAudience(claims *Claims, audience string) error {
	if audience == "" {
		return nil
	}
	aud, err := claims.GetAudience()
	if err != nil {
		return fmt.Errorf("failed to read audience: %w", err)
	}
	if !slices.Contains(aud, audience) {
		return ErrInvalidAudience
	}
	return nil
}

// Close is a no-op: the key set refresh stops with the process.
func (v *JWKSVerifier) Close() error {
	return nil
}
