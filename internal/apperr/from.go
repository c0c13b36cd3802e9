package apperr

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// From converts an arbitrary error into an *Error.
//
// Values that already are (or wrap) an *Error are returned as is. Body
// decoding failures become JSON, validator failures become Validate keyed by
// snake_case field name, gorm.ErrRecordNotFound becomes NotFound and anything
// else becomes System carrying err's text. From(nil) returns nil.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		vErrs     validator.ValidationErrors
	)
	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return JSONCause(err)
	case errors.As(err, &vErrs):
		return FromValidation(vErrs)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{kind: KindNotFound, message: "record not found", cause: err}
	}
	return SystemCause(err.Error(), err)
}

// FromValidation builds a Validate error from validator field errors.
func FromValidation(errs validator.ValidationErrors) *Error {
	fields := make(Errors, len(errs))
	for _, fe := range errs {
		key := snakeCase(fe.Field())
		fields[key] = append(fields[key], ruleMessage(fe))
	}
	return Validate(fields)
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid url"
	}
	return "failed " + fe.Tag() + " validation"
}

// snakeCase turns "UserID" into "user_id" and "createdAt" into "created_at".
func snakeCase(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rs[i-1]) || (i+1 < len(rs) && unicode.IsLower(rs[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
