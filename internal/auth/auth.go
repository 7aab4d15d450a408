// Package auth guards the manual-flush endpoint. Login is a single admin
// password checked against a bcrypt hash in the settings store; successful
// login issues a short-lived JWT whose claims carry a per-session CSRF token
// that state-changing requests must echo back in a header.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"gallery-router/internal/common/errors"
	"gallery-router/internal/storage"
)

const (
	sessionTTL = 24 * time.Hour

	// CSRFHeader must carry the csrf claim on state-changing requests.
	CSRFHeader = "X-CSRF-Token"
)

// Claims are the JWT claims for an admin session.
type Claims struct {
	CSRF string `json:"csrf"`
	jwt.RegisteredClaims
}

// Auth issues and validates admin session tokens.
type Auth struct {
	store  storage.Storage
	secret []byte
}

// New creates an authenticator backed by the settings store.
func New(store storage.Storage, secret []byte) *Auth {
	return &Auth{store: store, secret: secret}
}

// EnsureAdminPassword stores a bcrypt hash of the configured password when no
// hash exists yet. An already-stored hash wins over configuration so a
// password changed at runtime survives restarts.
func (a *Auth) EnsureAdminPassword(ctx context.Context, plaintext string) error {
	if plaintext == "" {
		return nil
	}

	existing, err := a.store.GetSetting(ctx, storage.SettingAdminPassword)
	if err != nil {
		return err
	}
	if existing != "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return a.store.SetSetting(ctx, storage.SettingAdminPassword, string(hash))
}

// Login checks the admin password and returns a signed session token plus
// the CSRF token embedded in it.
func (a *Auth) Login(ctx context.Context, password string) (token, csrf string, err error) {
	hash, err := a.store.GetSetting(ctx, storage.SettingAdminPassword)
	if err != nil {
		return "", "", errors.InternalError("cannot read admin credentials", err)
	}
	if hash == "" {
		return "", "", errors.AuthError("no admin password configured")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", "", errors.AuthError("invalid password")
	}

	csrf = randomToken()
	now := time.Now()
	claims := &Claims{
		CSRF: csrf,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", "", errors.InternalError("cannot sign session token", err)
	}
	return token, csrf, nil
}

// ChangePassword replaces the stored admin password hash.
func (a *Auth) ChangePassword(ctx context.Context, newPassword string) error {
	if len(newPassword) < 8 {
		return errors.ValidationError("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return a.store.SetSetting(ctx, storage.SettingAdminPassword, string(hash))
}

// ValidateRequest extracts and verifies the bearer token on a request.
func (a *Auth) ValidateRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, errors.AuthError("missing bearer token")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		strings.TrimPrefix(header, "Bearer "),
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.AuthError("unexpected signing method")
			}
			return a.secret, nil
		},
	)
	if err != nil {
		return nil, errors.AuthError("invalid session token")
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid session token.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.ValidateRequest(r); err != nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCSRF rejects requests whose CSRF header does not match the token
// bound to the session. Implies RequireAuth.
func (a *Auth) RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.ValidateRequest(r)
		if err != nil {
			unauthorized(w)
			return
		}

		if claims.CSRF == "" || r.Header.Get(CSRFHeader) != claims.CSRF {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error": "CSRF token mismatch"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error": "Authentication required"}`))
}

func randomToken() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// A predictable CSRF token is worse than no session at all.
		panic("csrf token source failed: " + err.Error())
	}
	return base64.URLEncoding.EncodeToString(bytes)
}
