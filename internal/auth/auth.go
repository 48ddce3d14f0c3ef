package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"image-review/backend/internal/config"

	"github.com/coreos/go-oidc"
)

// ErrUnauthorized is returned for a missing, malformed, expired or otherwise
// rejected bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Email   string
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored by RequireAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// ID is the stable identity of the caller: the subject, or the email for
// tokens without one.
func (p Principal) ID() string {
	if p.Subject != "" {
		return p.Subject
	}
	return p.Email
}

// CallerID returns the ID of the principal stored in ctx. It reports false
// when the request was not authenticated.
func CallerID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok || p.ID() == "" {
		return "", false
	}
	return p.ID(), true
}

// Verifier checks a raw JWT. *oidc.IDTokenVerifier satisfies it.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Auth verifies bearer tokens issued by the identity provider: signature
// against the published key set, issuer, audience, expiry and, when
// configured, the authorized party.
type Auth struct {
	verifier        Verifier
	authorizedParty string
	logger          Logger
	authBypass      bool
}

// New creates a new Auth object using values from the application
// configuration. Without an explicit JWKS URL the key set is discovered from
// the issuer's OpenID configuration.
func New(ctx context.Context, cfg *config.Config, logger Logger) (*Auth, error) {
	if cfg.AuthBypassed() {
		logger.Info("bearer verification bypassed", "environment", cfg.Environment)
		return &Auth{logger: logger, authBypass: true}, nil
	}

	if cfg.Auth.Issuer == "" || cfg.Auth.Audience == "" || cfg.Auth.AuthorizedParty == "" {
		return nil, errors.New("auth configuration is incomplete: issuer, audience and authorized party are required")
	}

	oidcConfig := &oidc.Config{ClientID: cfg.Auth.Audience}

	var verifier *oidc.IDTokenVerifier
	if cfg.Auth.JWKSURL != "" {
		keySet := oidc.NewRemoteKeySet(ctx, cfg.Auth.JWKSURL)
		verifier = oidc.NewVerifier(cfg.Auth.Issuer, keySet, oidcConfig)
	} else {
		provider, err := oidc.NewProvider(ctx, cfg.Auth.Issuer)
		if err != nil {
			return nil, fmt.Errorf("discover identity provider: %w", err)
		}
		verifier = provider.Verifier(oidcConfig)
	}

	return NewWithVerifier(verifier, cfg.Auth.AuthorizedParty, logger), nil
}

// NewWithVerifier creates an Auth around an existing verifier.
func NewWithVerifier(v Verifier, authorizedParty string, logger Logger) *Auth {
	return &Auth{verifier: v, authorizedParty: authorizedParty, logger: logger}
}

// Authenticate checks an Authorization header value. Every failure wraps
// ErrUnauthorized.
func (a *Auth) Authenticate(ctx context.Context, header string) (Principal, error) {
	if a.authBypass {
		return Principal{Subject: "dev", Email: "dev@localhost"}, nil
	}

	scheme, rawToken, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(rawToken) == "" {
		return Principal{}, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}

	token, err := a.verifier.Verify(ctx, strings.TrimSpace(rawToken))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	var claims struct {
		Email string `json:"email"`
		Azp   string `json:"azp"`
	}
	if err := token.Claims(&claims); err != nil {
		return Principal{}, fmt.Errorf("%w: failed to parse token claims: %v", ErrUnauthorized, err)
	}
	if a.authorizedParty != "" && claims.Azp != a.authorizedParty {
		return Principal{}, fmt.Errorf("%w: unexpected authorized party %q", ErrUnauthorized, claims.Azp)
	}

	return Principal{Subject: token.Subject, Email: claims.Email}, nil
}

// RequireAuth is middleware that rejects requests without a valid bearer
// token with 401 and stores the Principal in the request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			if a.logger != nil {
				a.logger.Info("rejected request", "path", r.URL.Path, "error", err)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid or missing token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}
