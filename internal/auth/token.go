package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"ms-attendance/internal/models"
)

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// ParseUnverifiedClaims decodes the claims of a JWT without checking its signature.
// Only the insecure development verifier relies on this.
func ParseUnverifiedClaims(tokenString string) (models.TokenClaims, error) {
	var claims models.TokenClaims
	if tokenString == "" {
		return claims, errors.New("empty token")
	}

	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return claims, fmt.Errorf("failed to parse token: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return claims, errors.New("invalid token claims")
	}

	raw, err := json.Marshal(mapClaims)
	if err != nil {
		return claims, fmt.Errorf("re-encode claims: %w", err)
	}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return claims, fmt.Errorf("decode claims: %w", err)
	}
	if claims.Sub == "" {
		return claims, errors.New("subject claim not found in token")
	}
	return claims, nil
}
