// ABOUTME: Bearer token authentication for the web API
// ABOUTME: Issues and validates HS256 JWTs carrying the viewer's id and role
package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/harperreed/leadbook/models"
)

var (
	ErrMissingToken = errors.New("bearer token is required")
	ErrInvalidToken = errors.New("bearer token is invalid")
)

// tokenClaims is the JWT payload. Subject is the viewer id.
type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for viewer that expires after ttl.
func IssueToken(secret string, viewer models.Viewer, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("LEADBOOK_JWT_SECRET is not set")
	}
	if viewer.ID == "" {
		return "", fmt.Errorf("viewer id is required")
	}

	claims := tokenClaims{
		Role: viewer.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   viewer.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a signed token and returns the viewer it names.
func ParseToken(secret, token string, now time.Time) (models.Viewer, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.Viewer{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return models.Viewer{}, fmt.Errorf("%w: sub is required", ErrInvalidToken)
	}
	switch claims.Role {
	case models.RoleAdmin, models.RoleManager, models.RoleAgent:
	default:
		return models.Viewer{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return models.Viewer{ID: claims.Subject, Role: claims.Role}, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

type viewerHandler func(w http.ResponseWriter, r *http.Request, viewer models.Viewer)

// authenticated rejects requests without a valid bearer token before calling next.
func (s *Server) authenticated(next viewerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			writeError(w, http.StatusServiceUnavailable, "web API is disabled: LEADBOOK_JWT_SECRET is not set")
			return
		}

		token, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		viewer, err := ParseToken(s.secret, token, s.now())
		if err != nil {
			s.logger.Warn("rejected bearer token", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
			return
		}

		next(w, r, viewer)
	}
}
