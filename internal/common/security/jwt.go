package security

import (
	"errors"
	"time"
	"tle_zone_contest/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

func InitJWT() {
	TokenAuth = NewTokenAuth(config.AppConfig.JWTKey)
}

// NewTokenAuth builds an HS256 signer/verifier for the given secret.
func NewTokenAuth(secret []byte) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", secret, nil)
}

func GenerateTokenWith(auth *jwtauth.JWTAuth, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}
	_, tokenString, err := auth.Encode(claims)
	return tokenString, err
}

func GetUserIDFromClaims(claims map[string]interface{}) (string, error) {
	id, ok := claims["user_id"].(string)
	if !ok || id == "" {
		return "", errors.New("user_id claim is missing or not a string")
	}
	return id, nil
}

func GetUserRoleFromClaims(claims map[string]interface{}) (string, error) {
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}
