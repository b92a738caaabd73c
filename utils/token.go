package utils

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// GenerateToken Create a signed JWT carrying the user id and role.
func GenerateToken(userID uint, role, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"authorized": true,
		"user_id":    userID,
		"role":       role,
		"exp":        time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken Validate a JWT and extract the user id and role.
func ParseToken(tokenString, secret string) (uint, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, "", fmt.Errorf("invalid token")
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, "", fmt.Errorf("token missing user_id")
	}
	role, _ := claims["role"].(string)
	return uint(userID), role, nil
}
