// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// UnauthorizedMessage is the only message a failed credential check ever
// returns, so responses reveal nothing about the route or resource.
const UnauthorizedMessage = "Missing or invalid admin token"

// ErrNoAdminCredential is returned when neither a token nor a token hash is
// configured.
var ErrNoAdminCredential = errors.New("admin token or token hash must be configured")

// TokenVerifier checks presented admin tokens against the configured
// secret: either the plain token, compared in constant time, or a bcrypt
// hash of it.
type TokenVerifier struct {
	token []byte
	hash  []byte
}

// NewTokenVerifier creates a verifier. The hash takes precedence when both
// are set.
func NewTokenVerifier(token, hash string) (*TokenVerifier, error) {
	switch {
	case hash != "":
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, err
		}
		return &TokenVerifier{hash: []byte(hash)}, nil
	case token != "":
		return &TokenVerifier{token: []byte(token)}, nil
	}
	return nil, ErrNoAdminCredential
}

// Verify reports whether presented is the admin token.
func (v *TokenVerifier) Verify(presented string) bool {
	if presented == "" {
		return false
	}
	if v.hash != nil {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(presented), v.token) == 1
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireAdminToken rejects requests without a valid bearer token with 401
// before any route handler runs.
func RequireAdminToken(v *TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Verify(bearerToken(r)) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				WriteError(w, r, http.StatusUnauthorized, UnauthorizedMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
