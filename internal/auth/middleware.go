package auth

import (
	"net/http"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/platform/apperr"
	"buyer_crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// ContextIdentityKey is the gin context key for the resolved domain.Identity.
const ContextIdentityKey = "identity"

// AuthRequired rejects requests without a valid bearer token and stores the identity otherwise.
func AuthRequired(provider IdentityProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := httpkit.BearerToken(c)
		if !ok {
			abortUnauthorized(c, errMissingToken)
			return
		}

		who, err := provider.Authenticate(c.Request.Context(), rawToken)
		if err != nil {
			message := errInvalidToken
			if appErr := httpkit.AsAppError(err); appErr != nil {
				message = appErr.Message
			}
			abortUnauthorized(c, message)
			return
		}

		c.Set(ContextIdentityKey, who)
		httpkit.SetSubject(c, who.ID.String())
		c.Next()
	}
}

// IdentityFrom returns the identity stored by AuthRequired.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	value, ok := c.Get(ContextIdentityKey)
	if !ok {
		return domain.Identity{}, false
	}
	who, ok := value.(domain.Identity)
	return who, ok
}

// MustIdentity returns the caller identity or aborts with 401 and reports false.
func MustIdentity(c *gin.Context) (domain.Identity, bool) {
	who, ok := IdentityFrom(c)
	if !ok {
		abortUnauthorized(c, "unauthorized")
		return domain.Identity{}, false
	}
	return who, true
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{
		Error: message,
		Kind:  apperr.KindUnauthorized.String(),
	})
}
