// Package auth verifies the HS256 bearer tokens issued by the account
// service and puts the caller's identity on the request context.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/tigertix/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// User is the authenticated caller.
type User struct {
	ID    int64
	Email string
	Name  string
}

type ctxKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the user set by Middleware.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}

// Errors returned by Verifier.Verify and mapped to 401 bodies by Middleware.
var (
	// ErrMissingToken means the Authorization header carried no bearer token.
	ErrMissingToken = errors.New("no token provided")

	// ErrInvalidToken covers bad signatures, unexpected algorithms and
	// malformed tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidPayload means the token verified but names no usable user id.
	ErrInvalidPayload = errors.New("token payload has no user id")

	// ErrExpired means the token verified but its exp claim has passed.
	ErrExpired = errors.New("token has expired")
)

// Verifier checks tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	log    zerolog.Logger
}

// NewVerifier returns a Verifier for HS256 tokens signed with secret.
func NewVerifier(secret string, log zerolog.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), log: log}
}

// Verify parses a raw token and extracts the user. Tokens carry the user id
// in either a userId or an id claim, as a number or a numeric string.
func (v *Verifier) Verify(raw string) (User, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return User{}, ErrExpired
		}
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, ok := userID(claims["userId"])
	if !ok {
		id, ok = userID(claims["id"])
	}
	if !ok {
		return User{}, ErrInvalidPayload
	}

	u := User{ID: id}
	u.Email, _ = claims["email"].(string)
	u.Name, _ = claims["name"].(string)
	return u, nil
}

func userID(v any) (int64, bool) {
	switch id := v.(type) {
	case float64:
		if id > 0 && id == float64(int64(id)) {
			return int64(id), true
		}
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err == nil && n > 0 {
			return n, true
		}
	case json.Number:
		n, err := id.Int64()
		if err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// Middleware rejects requests without a valid bearer token with 401.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			unauthorized(w, ErrMissingToken)
			return
		}

		u, err := v.Verify(raw)
		if err != nil {
			v.log.Debug().Err(err).Str("path", r.URL.Path).Msg("token rejected")
			unauthorized(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func unauthorized(w http.ResponseWriter, err error) {
	resp := model.AuthErrorResponse{RequiresAuth: true, Error: "Invalid token"}
	switch {
	case errors.Is(err, ErrExpired):
		resp.Error = "Token has expired"
		resp.Expired = true
	case errors.Is(err, ErrMissingToken):
		resp.Error = "No token provided"
	case errors.Is(err, ErrInvalidPayload):
		resp.Error = "Invalid token payload"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(resp)
}

// IssueToken signs a token for u that expires after ttl. Used by the token
// command for local testing.
func IssueToken(secret string, u User, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"userId": u.ID,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}
	if u.Email != "" {
		claims["email"] = u.Email
	}
	if u.Name != "" {
		claims["name"] = u.Name
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
