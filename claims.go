package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClaims is the payload of a bearer credential
type TokenClaims struct {
	jwt.RegisteredClaims
	AccountID int64 `json:"account_id"`
	RoleID    int64 `json:"role_id"`
}

// Expires returns the expiry time or the zero time
func (c *TokenClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued returns the issue time or the zero time
func (c *TokenClaims) Issued() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

func newTokenClaims(accountID, roleID int64, issuer string, audience jwt.ClaimStrings, now time.Time, ttl time.Duration) *TokenClaims {
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(accountID, 10),
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AccountID: accountID,
		RoleID:    roleID,
	}
	ensureTokenID(&claims.RegisteredClaims)
	return claims
}

// ensureTokenID sets a jti so two tokens minted in the same second differ
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
