package jwtclaims_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/neoql/authorization"
	"github.com/syssam/neoql/config"
	"github.com/syssam/neoql/contrib/jwtclaims"
)

var secret = []byte("s3cret")

func sign(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestClaims(t *testing.T) {
	v := jwtclaims.NewHMAC(secret)
	token := sign(t, secret, jwt.MapClaims{
		"sub":   "u1",
		"roles": []any{"admin"},
		"org":   map[string]any{"id": "o1"},
	})
	claims, err := v.Claims(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims["sub"])
	id, ok := claims.Lookup("org.id")
	require.True(t, ok)
	assert.Equal(t, "o1", id)
}

func TestClaimsRejected(t *testing.T) {
	tests := []struct {
		name  string
		v     *jwtclaims.Verifier
		token string
	}{
		{"bad signature", jwtclaims.NewHMAC(secret), sign(t, []byte("other"), jwt.MapClaims{"sub": "u1"})},
		{"expired", jwtclaims.NewHMAC(secret), sign(t, secret, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})},
		{"issuer", jwtclaims.NewHMAC(secret, jwt.WithIssuer("https://a")), sign(t, secret, jwt.MapClaims{"iss": "https://b"})},
		{"garbage", jwtclaims.NewHMAC(secret), "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.v.Claims(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestFromConfig(t *testing.T) {
	_, err := jwtclaims.FromConfig(config.AuthConfig{})
	require.Error(t, err)

	v, err := jwtclaims.FromConfig(config.AuthConfig{Secret: "s3cret", Audience: "neoql"})
	require.NoError(t, err)
	_, err = v.Claims(sign(t, secret, jwt.MapClaims{"aud": "other"}))
	assert.Error(t, err)
	_, err = v.Claims(sign(t, secret, jwt.MapClaims{"aud": "neoql"}))
	assert.NoError(t, err)
}

func TestMiddleware(t *testing.T) {
	v := jwtclaims.NewHMAC(secret)
	var got authorization.Claims
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = authorization.FromContext(r.Context())
	}))
	tests := []struct {
		name   string
		header string
		status int
		sub    any
	}{
		{"anonymous", "", http.StatusOK, nil},
		{"valid", "Bearer " + sign(t, secret, jwt.MapClaims{"sub": "u1"}), http.StatusOK, "u1"},
		{"lowercase scheme", "bearer " + sign(t, secret, jwt.MapClaims{"sub": "u2"}), http.StatusOK, "u2"},
		{"invalid", "Bearer " + sign(t, []byte("other"), jwt.MapClaims{"sub": "u1"}), http.StatusUnauthorized, nil},
		{"basic", "Basic dTpw", http.StatusOK, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			r := httptest.NewRequest(http.MethodPost, "/graphql", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.sub, got["sub"])
		})
	}
}
