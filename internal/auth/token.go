package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marketai/marketai-admin/internal/access"
)

// ErrInvalidToken is returned for any bearer token that fails verification.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the token body shared with the identity provider.
type Claims struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	UserID      int64    `json:"uid,omitempty"`
	Email       string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates and issues HS256 bearer tokens.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier returns nil when secret is empty, which disables bearer
// authentication.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	if secret == "" {
		return nil
	}
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses raw and converts its claims to a principal. Role and
// permission tokens are normalized but not filtered: unknown values simply
// grant nothing.
func (v *TokenVerifier) Verify(raw string) (access.Principal, error) {
	if v == nil {
		return access.Principal{}, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	var claims Claims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return access.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return access.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	role, _ := access.ParseRole(claims.Role)
	perms := make([]access.Permission, 0, len(claims.Permissions))
	for _, token := range claims.Permissions {
		p, _ := access.ParsePermission(token)
		perms = append(perms, p)
	}
	return access.Principal{
		Subject:     claims.Subject,
		UserID:      claims.UserID,
		Email:       claims.Email,
		Role:        role,
		Permissions: perms,
	}, nil
}

// Issue signs a token for p that expires after ttl.
func (v *TokenVerifier) Issue(p access.Principal, ttl time.Duration) (string, error) {
	if v == nil {
		return "", ErrInvalidToken
	}
	now := time.Now()
	perms := make([]string, len(p.Permissions))
	for i, perm := range p.Permissions {
		perms[i] = string(perm)
	}
	claims := Claims{
		Role:        string(p.Role),
		Permissions: perms,
		UserID:      p.UserID,
		Email:       p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
