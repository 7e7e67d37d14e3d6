package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/platform/apperr"
	"buyer_crm_backend/platform/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-access-secret"

func newProvider() *JWTProvider {
	return NewJWTProvider(&config.Config{JWTAccessSecret: testSecret})
}

func sign(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthenticateRoundTrip(t *testing.T) {
	p := newProvider()
	who := domain.Identity{ID: uuid.New(), Role: domain.RoleAdmin, Email: "admin@example.com"}

	token, err := p.Issue(who, time.Hour)
	require.NoError(t, err)

	got, err := p.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, who, got)
}

func TestAuthenticateDefaultsRoleToUser(t *testing.T) {
	id := uuid.New()
	token := sign(t, jwt.MapClaims{"sub": id.String(), "type": "access", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)

	got, err := newProvider().Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, got.Role)
	assert.Equal(t, id.String(), got.ActorLabel())
}

func TestAuthenticateRejects(t *testing.T) {
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{"sub": uuid.NewString(), "type": "access", "role": "USER", "exp": time.Now().Add(time.Hour).Unix()}
	}
	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": sign(t, valid(), "other-secret"),
		"refresh type": func() string { c := valid(); c["type"] = "refresh"; return sign(t, c, testSecret) }(),
		"expired":      func() string { c := valid(); c["exp"] = time.Now().Add(-time.Minute).Unix(); return sign(t, c, testSecret) }(),
		"bad subject":  func() string { c := valid(); c["sub"] = "user-1"; return sign(t, c, testSecret) }(),
		"bad role":     func() string { c := valid(); c["role"] = "ROOT"; return sign(t, c, testSecret) }(),
	}
	for name, token := range cases {
		_, err := newProvider().Authenticate(context.Background(), token)
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized), name)
	}
}

func TestAuthRequiredMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := newProvider()
	who := domain.Identity{ID: uuid.New(), Role: domain.RoleUser}
	token, err := p.Issue(who, time.Hour)
	require.NoError(t, err)

	engine := gin.New()
	engine.GET("/me", AuthRequired(p), func(c *gin.Context) {
		got, ok := MustIdentity(c)
		if !ok {
			return
		}
		c.String(http.StatusOK, got.ID.String())
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, who.ID.String(), rec.Body.String())
}
