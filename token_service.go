package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// MinSigningKeyLength is the shortest HS256 key accepted
const MinSigningKeyLength = 32

// TokenService signs and validates bearer credentials
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// NewTokenService creates a token service. A missing or short signing key
// is a configuration error and the service must not be used.
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, audience []string) (*TokenService, error) {
	if len(signingKey) < MinSigningKeyLength {
		return nil, ErrConfiguration
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		audience:   jwt.ClaimStrings(audience),
		logger:     defLogger{},
		now:        time.Now,
	}, nil
}

// NewTokenServiceFromConfig builds the service from Config
func NewTokenServiceFromConfig(cfg Config) (*TokenService, error) {
	ttl := time.Duration(cfg.GetTokenExpiration()) * time.Hour
	return NewTokenService([]byte(cfg.GetSigningKey()), ttl, cfg.GetIssuer(), cfg.GetAudience())
}

func (ts *TokenService) WithLogger(l Logger) *TokenService {
	ts.logger = normalizeLogger(l)
	return ts
}

// WithClock overrides the time source used when minting
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// TTL is the validity window of minted tokens
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Generate mints a token binding accountID and roleID
func (ts *TokenService) Generate(accountID, roleID int64) (string, *TokenClaims, error) {
	claims := newTokenClaims(accountID, roleID, ts.issuer, ts.audience, ts.now(), ts.ttl)
	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// SignClaims signs arbitrary claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *TokenClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate checks signature, expiry, issuer and audience. It does not
// consult the session registry.
func (ts *TokenService) Validate(tokenString string) (*TokenClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("token service validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		ts.logger.Debug("token validation failed", "error", err)
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.AccountID == 0 {
		return nil, ErrTokenMalformed
	}

	if !ts.acceptsAudience(claims.Audience) {
		ts.logger.Debug("token validation failed", "error", jwt.ErrTokenInvalidAudience, "aud", claims.Audience)
		return nil, ErrTokenMalformed
	}

	// jwt treats exp == now as valid; sessions expiring now are expired
	if !ts.now().Before(claims.Expires()) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

// acceptsAudience reports whether aud names at least one configured audience.
// An empty configuration accepts any audience.
func (ts *TokenService) acceptsAudience(aud jwt.ClaimStrings) bool {
	if len(ts.audience) == 0 {
		return true
	}
	for _, want := range ts.audience {
		for _, got := range aud {
			if got == want {
				return true
			}
		}
	}
	return false
}
