// Package jwtclaims verifies bearer tokens and exposes their payload as
// authorization claims.
package jwtclaims

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/config"
)

// ErrNoToken is returned when a request carries no bearer token.
var ErrNoToken = errors.New("jwtclaims: no bearer token")

// Verifier verifies signed tokens.
type Verifier struct {
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
	log     *slog.Logger
}

// New returns a verifier resolving signing keys with keyFunc.
func New(keyFunc jwt.Keyfunc, opts ...jwt.ParserOption) *Verifier {
	return &Verifier{keyFunc: keyFunc, parser: jwt.NewParser(opts...), log: slog.Default()}
}

// NewHMAC returns a verifier of HS256, HS384 and HS512 tokens signed with
// secret.
func NewHMAC(secret []byte, opts ...jwt.ParserOption) *Verifier {
	opts = append([]jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}, opts...)
	return New(func(*jwt.Token) (any, error) { return secret, nil }, opts...)
}

// FromConfig returns an HMAC verifier for the auth settings.
func FromConfig(c config.AuthConfig) (*Verifier, error) {
	if c.Secret == "" {
		return nil, errors.New("jwtclaims: empty secret")
	}
	var opts []jwt.ParserOption
	if c.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.Issuer))
	}
	if c.Audience != "" {
		opts = append(opts, jwt.WithAudience(c.Audience))
	}
	return NewHMAC([]byte(c.Secret), opts...), nil
}

// WithLogger sets the logger rejected tokens are reported to.
func (v *Verifier) WithLogger(l *slog.Logger) *Verifier {
	v.log = l
	return v
}

// Claims verifies token and returns its payload.
func (v *Verifier) Claims(token string) (authorization.Claims, error) {
	t, err := v.parser.ParseWithClaims(token, jwt.MapClaims{}, v.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("jwtclaims: %w", err)
	}
	mc, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("jwtclaims: unexpected claims type %T", t.Claims)
	}
	return authorization.Claims(mc), nil
}

// FromRequest verifies the bearer token of r.
func (v *Verifier) FromRequest(r *http.Request) (authorization.Claims, error) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, ErrNoToken
	}
	return v.Claims(strings.TrimSpace(token))
}

// Middleware attaches the claims of the bearer token to the request
// context. Requests without a token pass through unauthenticated; requests
// with an invalid token are rejected with 401.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := v.FromRequest(r)
		switch {
		case errors.Is(err, ErrNoToken):
			next.ServeHTTP(w, r)
		case err != nil:
			v.log.DebugContext(r.Context(), "rejected bearer token", "error", err)
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		default:
			next.ServeHTTP(w, r.WithContext(authorization.NewContext(r.Context(), claims)))
		}
	})
}
