package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents JWT payload.
type Claims struct {
	Subject    string `json:"sub"`
	IsAdmin    bool   `json:"is_admin"`
	PendingOTP bool   `json:"pending_otp,omitempty"`
	jwt.RegisteredClaims
}

// Expiry returns the absolute expiry carried by the token.
func (c Claims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Codec signs and verifies session tokens with a shared HS256 secret.
type Codec struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewCodec creates a codec. An empty issuer disables the issuer check.
func NewCodec(key, issuer string) *Codec {
	return &Codec{key: []byte(key), issuer: issuer, now: time.Now}
}

// Issue signs claims with an absolute expiry of now+ttl.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if claims.Subject == "" {
		return "", errors.New("subject required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	now := c.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   claims.Subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a token and returns claims. Every failure, including
// expiry, is reported as ErrInvalidToken.
func (c *Codec) Parse(tokenStr string) (Claims, error) {
	if tokenStr == "" {
		return Claims{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return c.key, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return Claims{}, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}
	return *claims, nil
}
