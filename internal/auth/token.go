package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"ms-payments/internal/models"
)

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// ExtractUserFromJWT extracts the user identity (subject and email claims)
// from a JWT token. The workflow attributes every payment action to this
// identity, so both claims are required.
func ExtractUserFromJWT(tokenString string) (models.User, error) {
	if tokenString == "" {
		return models.User{}, errors.New("empty token")
	}

	// Parse the JWT without validating the signature; signature validation
	// happens in the OIDC middleware.
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return models.User{}, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.User{}, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return models.User{}, errors.New("subject claim not found in token")
	}

	email, _ := claims["email"].(string)

	return models.User{ID: sub, Email: email}, nil
}
