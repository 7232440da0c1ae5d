package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "compras/internal/errors"
	"compras/internal/logger"
)

// ErrorHandler turns the last error attached to the context into the JSON error
// envelope. Bind errors become INVALID_INPUT; anything that is not an AppError is
// logged and reported as INTERNAL_ERROR. Nothing is written when the handler has
// already started a response, such as a file download.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var appErr *apperrors.AppError
		switch {
		case errors.As(last.Err, &appErr):
		case last.IsType(gin.ErrorTypeBind):
			appErr = apperrors.WithMessage(apperrors.ErrInvalidInput, last.Err.Error())
		default:
			logger.Named("http").Errorw("unexpected error",
				"error", last.Err.Error(),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			appErr = apperrors.ErrInternalServer
		}

		if appErr.Internal != nil {
			logger.Named("http").Errorw("request failed",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{"code": appErr.Code, "message": appErr.Message},
		})
	}
}
