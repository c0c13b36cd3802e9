package apperr

import (
	"github.com/gin-gonic/gin"
)

// View selects which projection is written to HTTP clients.
type View uint8

const (
	// ViewSystem writes SystemErrors (the default response contract).
	ViewSystem View = iota
	// ViewUser writes the redacted UserErrors.
	ViewUser
)

// Project returns the requested view of e.
func (e *Error) Project(v View) Errors {
	if v == ViewUser {
		return e.UserErrors()
	}
	return e.SystemErrors()
}

// Respond aborts c with {"errors": SystemErrors()} and the mapped status.
// Non-*Error values are converted with From first.
func Respond(c *gin.Context, err error) *Error {
	return RespondView(c, err, ViewSystem)
}

// RespondView is Respond with an explicit projection.
func RespondView(c *gin.Context, err error, v View) *Error {
	ae := From(err)
	if ae == nil {
		ae = System("unknown error")
	}
	c.AbortWithStatusJSON(ae.StatusCode(), Body{Errors: ae.Project(v)})
	return ae
}
