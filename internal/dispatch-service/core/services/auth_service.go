package services

import (
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/dispatch-service/core/domain/model"

	"github.com/golang-jwt/jwt"
)

// AuthService verifies bearer credentials. It is a pure function of the token
// string: telemetry messages authenticate per message, so no connection state
// may leak in here.
type AuthService struct {
	secretKey string
}

func NewAuthService(secretKey string) *AuthService {
	return &AuthService{
		secretKey: secretKey,
	}
}

type ActorClaims struct {
	UserID string
	Role   string
}

// ValidateToken parses and verifies an HMAC-signed token, with or without the
// "Bearer " prefix, and returns its subject and role claims.
func (a *AuthService) ValidateToken(tokenString string) (ActorClaims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.secretKey), nil
	})
	if err != nil {
		return ActorClaims{}, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return ActorClaims{}, fmt.Errorf("invalid token")
	}

	if exp, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(exp), 0).Before(time.Now()) {
			return ActorClaims{}, fmt.Errorf("token expired")
		}
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return ActorClaims{}, fmt.Errorf("user_id is required")
	}

	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return ActorClaims{}, fmt.Errorf("role is required")
	}

	return ActorClaims{UserID: userID, Role: role}, nil
}

// ValidateCourierToken verifies a telemetry credential: it must carry the
// COURIER role and its subject must equal the courier id claimed by the
// topic the message arrived on.
func (a *AuthService) ValidateCourierToken(tokenString, topicCourierID string) (string, error) {
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Role != model.RoleCourier {
		return "", fmt.Errorf("invalid role")
	}
	if claims.UserID != topicCourierID {
		return "", fmt.Errorf("token subject does not match topic courier id")
	}
	return claims.UserID, nil
}
