package middleware

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "compras/internal/errors"
	"compras/internal/logger"
)

// serviceKeyHeader carries the shared secret of the scheduler that kicks the
// notification dispatcher.
const serviceKeyHeader = "X-API-Key"

// RequireServiceKey guards the /internal routes. With no key configured the
// routes stay closed, so an unset SERVICE_API_KEY never opens them.
func RequireServiceKey(key string) gin.HandlerFunc {
	want := sha256.Sum256([]byte(key))
	return func(c *gin.Context) {
		if key == "" {
			abortWith(c, apperrors.ErrDispatchDisabled)
			return
		}
		got := sha256.Sum256([]byte(c.GetHeader(serviceKeyHeader)))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			logger.Named("http").Warnw("internal call refused",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
			)
			abortWith(c, apperrors.ErrServiceKeyRejected)
			return
		}
		c.Next()
	}
}

func abortWith(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.StatusCode, gin.H{
		"error": gin.H{"code": err.Code, "message": err.Message},
	})
}
