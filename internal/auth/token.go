package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cityworks/addressing-service/internal/domain"
	apperrors "github.com/cityworks/addressing-service/pkg/util"
)

// Claims is the JWT payload issued for staff sessions.
type Claims struct {
	StaffID    string `json:"staff_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies staff access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager with the given signing secret
// and token lifetime.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a signed access token for the staff member.
func (m *TokenManager) Issue(staff *domain.Staff) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		StaffID:    staff.ID,
		Name:       staff.Name,
		Role:       string(staff.Role),
		Department: string(staff.Department),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staff.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token string, returning its claims.
func (m *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.NewUnauthorized("invalid or expired token")
	}
	return claims, nil
}
