// Package middleware provides HTTP middleware components.
package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"tabula/internal/core/apperror"
	"tabula/pkg/logger"
)

// Recovery middleware recovers from panics and returns 500 error.
// Logs stack trace but never exposes internal details to client.
//
// A panic unwinds past every inner middleware, so ErrorHandler never gets a
// chance to render it. Recovery writes the 500 JSON itself.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)

				if !c.Writer.Written() {
					c.JSON(500, gin.H{
						"code":    apperror.CodeInternal,
						"message": "Internal server error",
						"details": map[string]any{
							"request_id": c.GetString("request_id"),
						},
					})
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
