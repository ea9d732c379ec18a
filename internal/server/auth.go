package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type contextKey string

const userContextKey contextKey = "user_id"

// Authenticator verifies HS256 bearer tokens whose subject is the user ID
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewAuthenticator creates an authenticator. An empty issuer accepts any.
func NewAuthenticator(secret, issuer string, ttl time.Duration, logger zerolog.Logger) *Authenticator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Middleware rejects requests without a valid token and stores the user ID
// in the request context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.Verify(r.Header.Get("Authorization"))
		if err != nil {
			a.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected request")
			writeError(w, a.logger, errUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verify parses an Authorization header value and returns the subject
func (a *Authenticator) Verify(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("missing bearer token")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, prefix), &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}

	return claims.Subject, nil
}

// IssueToken signs a token for userID valid for the configured TTL
func (a *Authenticator) IssueToken(userID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(a.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// UserFromContext returns the authenticated user ID, or ""
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userContextKey).(string)
	return id
}
