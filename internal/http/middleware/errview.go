package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-backend-kit/internal/apperr"
)

const errorViewKey = "errors.view"

// ErrorView records which projection error responses use for this request.
// Without it responses carry the system view.
func ErrorView(v apperr.View) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(errorViewKey, v)
		c.Next()
	}
}

// ViewFrom returns the projection set by ErrorView, or apperr.ViewSystem.
func ViewFrom(c *gin.Context) apperr.View {
	if v, ok := c.Get(errorViewKey); ok {
		if view, ok := v.(apperr.View); ok {
			return view
		}
	}
	return apperr.ViewSystem
}
