package handlers

import (
	"github.com/gin-gonic/gin"
)

// Errors writes the last error a handler recorded with c.Error, unless the
// handler already produced a response.
//
//	r.Use(handlers.Errors())
//	r.GET("/x", func(c *gin.Context) { _ = c.Error(apperr.NotFound("no x")) })
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		Fail(c, last.Err)
	}
}
