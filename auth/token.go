package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by a session token. OwnerID is the identity every progress
// delivery is scoped to.
type Claims struct {
	OwnerID string `json:"owner_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies session tokens. The key is injected from
// configuration; nothing here is package-level state.
type TokenManager struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

func NewTokenManager(key []byte, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{key: key, issuer: issuer, ttl: ttl}
}

func (m *TokenManager) Generate(ownerID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		OwnerID: ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.key)
}

func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.OwnerID == "" {
		return nil, fmt.Errorf("token carries no owner")
	}
	return claims, nil
}
