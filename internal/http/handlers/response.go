// Package handlers holds the HTTP endpoints of the reference server and the
// helpers every handler uses to answer.
//
// Errors are written in one envelope, produced by apperr:
//
//	HTTP/1.1 404 Not Found
//	{"errors": {"notfound": ["route not found"]}}
//
// Database, Elastic, System and Other kinds carry their internal message in
// the default (system) projection; ErrorView(apperr.ViewUser) swaps in the
// redacted messages.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-backend-kit/internal/apperr"
	"github.com/tbourn/go-backend-kit/internal/http/middleware"
)

// Fail converts err with apperr.From, writes the envelope in the request's
// projection and aborts. 5xx responses are logged on the request-scoped
// logger with the system view, the kind and the cause. Every failure is
// counted in app_errors_total.
func Fail(c *gin.Context, err error) *apperr.Error {
	ae := apperr.From(err)
	if ae == nil {
		ae = apperr.System("unknown error")
	}
	middleware.ObserveError(ae.Kind())

	if status := ae.StatusCode(); status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("kind", ae.Kind().String()).
			Interface("errors", ae.SystemErrors())
		if cause := ae.Unwrap(); cause != nil {
			ev = ev.AnErr("cause", cause)
		}
		ev.Msg("api error")
	}

	return apperr.RespondView(c, ae, middleware.ViewFrom(c))
}

// ok writes body as JSON with status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
