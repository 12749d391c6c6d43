package services

import (
	"clinic-auth/internal/models"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// assertionTTL keeps minted assertions short-lived; downstream services
// re-validate through the gateway on every request anyway.
const assertionTTL = 5 * time.Minute

// JWTService mints short-lived identity assertions for downstream services
// that sit behind the gateway. The browser never sees these tokens; the
// session cookie stays opaque.
type JWTService struct {
	JWTSecret string
}

func NewJWTService(jwtSecret string) *JWTService {
	return &JWTService{
		JWTSecret: jwtSecret,
	}
}

func (jwt_s *JWTService) GenerateIdentityAssertion(identityID, email string, roles []string) (string, error) {
	now := time.Now()
	claim := models.IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
			Issuer:    "clinic-auth",
			Subject:   identityID,
		},
		IdentityID: identityID,
		Email:      email,
		Roles:      roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claim)
	tokenString, err := token.SignedString([]byte(jwt_s.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("error generate token string: %s", err)
	}
	return tokenString, nil
}

func (jwt_s *JWTService) VerifyAssertion(tokenString string) (*models.IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&models.IdentityClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwt_s.JWTSecret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*models.IdentityClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
