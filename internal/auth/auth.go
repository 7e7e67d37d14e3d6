// Package auth resolves bearer tokens into caller identities.
// Account management lives outside this service; tokens are issued by the
// identity provider and only verified here.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/platform/apperr"
	"buyer_crm_backend/platform/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess = "access"

	errMissingToken = "missing token"
	errInvalidToken = "invalid token"
)

// IdentityProvider turns a raw credential into the caller identity.
type IdentityProvider interface {
	Authenticate(ctx context.Context, rawToken string) (domain.Identity, error)
}

// JWTProvider verifies HS256 access tokens signed with the shared secret.
type JWTProvider struct {
	secret []byte
	now    func() time.Time
}

// NewJWTProvider creates a provider for the configured access secret.
func NewJWTProvider(cfg config.JWTConfig) *JWTProvider {
	return &JWTProvider{secret: []byte(cfg.GetJWTAccessSecret()), now: time.Now}
}

// Authenticate validates signature, expiry and token type, then reads sub, role and email.
// Every failure is an Unauthenticated error.
func (p *JWTProvider) Authenticate(_ context.Context, rawToken string) (domain.Identity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return domain.Identity{}, apperr.Unauthorized(errMissingToken)
	}

	parsed, err := jwt.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now))
	if err != nil || !parsed.Valid {
		return domain.Identity{}, apperr.Unauthorized(errInvalidToken)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Identity{}, apperr.Unauthorized(errInvalidToken)
	}
	if tokenType, _ := claims["type"].(string); tokenType != tokenTypeAccess {
		return domain.Identity{}, apperr.Unauthorized(errInvalidToken)
	}

	subject, _ := claims["sub"].(string)
	userID, err := uuid.Parse(subject)
	if err != nil {
		return domain.Identity{}, apperr.Unauthorized(errInvalidToken)
	}

	role, err := parseRole(claims["role"])
	if err != nil {
		return domain.Identity{}, apperr.Unauthorized(errInvalidToken)
	}

	email, _ := claims["email"].(string)
	return domain.Identity{ID: userID, Role: role, Email: strings.TrimSpace(email)}, nil
}

// Issue signs an access token for who, valid for ttl. Used by tooling and tests.
func (p *JWTProvider) Issue(who domain.Identity, ttl time.Duration) (string, error) {
	now := p.now()
	claims := jwt.MapClaims{
		"sub":  who.ID.String(),
		"type": tokenTypeAccess,
		"role": string(who.Role),
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	if who.Email != "" {
		claims["email"] = who.Email
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenObj.SignedString(p.secret)
}

// parseRole defaults a missing role to USER. Unknown roles are rejected.
func parseRole(value interface{}) (domain.Role, error) {
	if value == nil {
		return domain.RoleUser, nil
	}
	text, ok := value.(string)
	if !ok {
		return "", errors.New("role must be a string")
	}
	switch domain.Role(strings.ToUpper(strings.TrimSpace(text))) {
	case domain.RoleUser:
		return domain.RoleUser, nil
	case domain.RoleAdmin:
		return domain.RoleAdmin, nil
	default:
		return "", errors.New("unknown role")
	}
}
