// internal/auth/session.go
package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// signingSecret is the HMAC key for access and refresh tokens, injected at
// startup via AUTH_SECRET.
var signingSecret []byte

// Token lifetimes.
const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Init loads the signing secret from the environment. The process refuses to
// start without one; a generated secret would invalidate every outstanding
// token on restart.
func Init() {
	secret := os.Getenv("AUTH_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "AUTH_SECRET is not set")
		os.Exit(1)
	}
	signingSecret = []byte(secret)
}

// InitWithSecret injects the signing secret directly. Used by tests.
func InitWithSecret(secret string) {
	signingSecret = []byte(secret)
}

// CreateAccessToken creates a signed JWT with "id" = userID, valid for one hour.
func CreateAccessToken(userID int64) (string, error) {
	claims := jwt.MapClaims{
		"id":   userID,
		"type": "access",
		"exp":  time.Now().Add(AccessTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingSecret)
}

// CreateRefreshToken creates a signed refresh JWT with a unique jti, valid
// for seven days. The jti is returned so callers can persist its hash.
func CreateRefreshToken(userID int64) (token string, jti string, err error) {
	jti = uuid.NewString()
	claims := jwt.MapClaims{
		"id":   userID,
		"type": "refresh",
		"jti":  jti,
		"exp":  time.Now().Add(RefreshTokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = t.SignedString(signingSecret)
	return token, jti, err
}

// AuthenticateToken verifies a JWT string and returns the "id" claim.
func AuthenticateToken(tokenString string) (int64, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingSecret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid jwt claims")
	}

	// encoding/json decodes numbers into float64
	id, ok := claims["id"].(float64)
	if !ok {
		return 0, fmt.Errorf("missing id in jwt")
	}
	return int64(id), nil
}

// AuthenticateRefreshToken verifies a refresh JWT and returns the user id and jti.
func AuthenticateRefreshToken(tokenString string) (int64, string, error) {
	id, err := AuthenticateToken(tokenString)
	if err != nil {
		return 0, "", err
	}
	t, _ := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return signingSecret, nil
	})
	claims, _ := t.Claims.(jwt.MapClaims)
	typ, _ := claims["type"].(string)
	if typ != "refresh" {
		return 0, "", fmt.Errorf("not a refresh token")
	}
	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return 0, "", fmt.Errorf("missing jti in refresh token")
	}
	return id, jti, nil
}
