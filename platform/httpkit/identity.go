package httpkit

import (
	"context"

	"buyer_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// ContextSubjectKey is the gin context key for the authenticated subject id.
const ContextSubjectKey = "subject"

// SetSubject records the authenticated subject on the gin context and on the
// request context so loggers pick it up as user_id.
func SetSubject(c *gin.Context, subject string) {
	c.Set(ContextSubjectKey, subject)
	ctx := context.WithValue(c.Request.Context(), logger.UserIDKey, subject)
	c.Request = c.Request.WithContext(ctx)
}

// Subject returns the authenticated subject id, if any.
func Subject(c *gin.Context) (string, bool) {
	value, ok := c.Get(ContextSubjectKey)
	if !ok {
		return "", false
	}
	subject, ok := value.(string)
	return subject, ok && subject != ""
}
