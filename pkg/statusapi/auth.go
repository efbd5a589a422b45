package statusapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthTokenTooShort matches the minimum HMAC key size jwt-go recommends
// for HS256.
var ErrAuthTokenTooShort = errors.New("status_api.auth_token must be at least 16 characters")

// claims identifies a status-API bearer token. There is no user model here:
// possession of a token signed with the configured auth_token is sufficient.
type claims struct {
	jwt.RegisteredClaims
}

// mintToken signs a bearer token a remote dashboard can use to poll this
// server; the token expires 24 hours after it is minted.
func mintToken(secret string) (string, error) {
	if len(secret) < 16 {
		return "", ErrAuthTokenTooShort
	}
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "coldvault-statusapi",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString([]byte(secret))
}

func verifyToken(tokenString, secret string) error {
	_, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	return err
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// bearerAuth rejects requests that don't carry a token signed with secret.
func bearerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				errorResponse(w, http.StatusUnauthorized, "authorization header required")
				return
			}
			if err := verifyToken(token, secret); err != nil {
				errorResponse(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
