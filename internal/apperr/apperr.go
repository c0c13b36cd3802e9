// Package apperr defines the single error type shared by every layer of the
// module.
//
// An *Error belongs to exactly one Kind out of a closed set. Each kind has a
// fixed category key, a fixed HTTP status and two projections:
//
//   - UserErrors: what an external caller may see. Infrastructure kinds
//     (Database, Elastic, System, Other, JSON) are redacted to a generic
//     message.
//   - SystemErrors: the same keys with the internal message kept, meant for
//     operators and logs.
//
// Values are immutable and are only built through the constructors below, so
// every *Error carries a complete payload for its kind.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
)

// Errors maps a category key to its ordered messages.
type Errors map[string][]string

// Kind enumerates the error categories.
type Kind uint8

const (
	KindAuthorization Kind = iota + 1
	KindNotFound
	KindConversion
	KindExistAccount
	KindMessages
	KindValidate
	KindDatabase
	KindElastic
	KindSystem
	KindJSON
	KindOther
)

// Category keys used by the single-message kinds.
const (
	KeyAuthorization = "authorization"
	KeyNotFound      = "notfound"
	KeyConversion    = "conversion"
	KeyExistAccount  = "account"
	KeyDatabase      = "database"
	KeyElastic       = "elastic"
	KeySystem        = "system"
	KeyJSON          = "json"
	KeyOther         = "other"

	// keys used when a Messages/Validate value is built from an empty map
	KeyMessages = "messages"
	KeyValidate = "validate"
)

// Redacted messages surfaced by UserErrors.
const (
	MsgServerError = "server error"
	MsgJSONFormat  = "error json format"
	msgEmptyFields = "invalid request"
)

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindAuthorization, KindNotFound, KindConversion, KindExistAccount,
		KindMessages, KindValidate, KindDatabase, KindElastic,
		KindSystem, KindJSON, KindOther,
	}
}

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConversion:
		return "conversion"
	case KindExistAccount:
		return "exist_account"
	case KindMessages:
		return "messages"
	case KindValidate:
		return "validate"
	case KindDatabase:
		return "database"
	case KindElastic:
		return "elastic"
	case KindSystem:
		return "system"
	case KindJSON:
		return "json"
	case KindOther:
		return "other"
	}
	return "invalid"
}

// Error is the shared error value. The zero value is not valid; use the
// constructors.
type Error struct {
	kind    Kind
	message string
	fields  Errors
	cause   error
}

func newMessage(k Kind, msg string, cause error) *Error {
	return &Error{kind: k, message: msg, cause: cause}
}

func newFields(k Kind, key string, fields Errors) *Error {
	cp := copyErrors(fields)
	if len(cp) == 0 {
		cp = NewError(key, msgEmptyFields)
	}
	return &Error{kind: k, fields: cp}
}

// Authorization reports a missing or rejected credential (401).
func Authorization(msg string) *Error { return newMessage(KindAuthorization, msg, nil) }

// NotFound reports a missing resource (404).
func NotFound(msg string) *Error { return newMessage(KindNotFound, msg, nil) }

// Conversion reports a value that could not be converted (422).
func Conversion(msg string) *Error { return newMessage(KindConversion, msg, nil) }

// ExistAccount reports an account that already exists (422).
func ExistAccount(msg string) *Error { return newMessage(KindExistAccount, msg, nil) }

// Messages wraps caller-authored, client-safe messages (422). The map is copied.
func Messages(fields Errors) *Error { return newFields(KindMessages, KeyMessages, fields) }

// Validate wraps field validation failures (422). The map is copied.
func Validate(fields Errors) *Error { return newFields(KindValidate, KeyValidate, fields) }

// Database reports a relational database failure (500).
func Database(msg string) *Error { return newMessage(KindDatabase, msg, nil) }

// DatabaseCause is Database with the underlying driver error kept for Unwrap.
func DatabaseCause(msg string, cause error) *Error { return newMessage(KindDatabase, msg, cause) }

// Elastic reports a search index failure (500).
func Elastic(msg string) *Error { return newMessage(KindElastic, msg, nil) }

// ElasticCause is Elastic with the underlying client error kept for Unwrap.
func ElasticCause(msg string, cause error) *Error { return newMessage(KindElastic, msg, cause) }

// System reports an internal failure (422).
func System(msg string) *Error { return newMessage(KindSystem, msg, nil) }

// SystemCause is System with an underlying error kept for Unwrap.
func SystemCause(msg string, cause error) *Error { return newMessage(KindSystem, msg, cause) }

// JSON reports a malformed request body (422).
func JSON() *Error { return newMessage(KindJSON, "", nil) }

// JSONCause is JSON with the decoder error kept for Unwrap.
func JSONCause(cause error) *Error { return newMessage(KindJSON, "", cause) }

// Other reports an uncategorized failure (422).
func Other(msg string) *Error { return newMessage(KindOther, msg, nil) }

// NewError builds a single-key map holding one message.
func NewError(key, value string) Errors {
	return Errors{key: {value}}
}

// Kind returns the category of e.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the stored message of single-message kinds ("" otherwise).
func (e *Error) Message() string { return e.message }

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// UserErrors returns the client-safe view.
func (e *Error) UserErrors() Errors {
	switch e.kind {
	case KindAuthorization:
		return NewError(KeyAuthorization, e.message)
	case KindNotFound:
		return NewError(KeyNotFound, e.message)
	case KindConversion:
		return NewError(KeyConversion, e.message)
	case KindExistAccount:
		return NewError(KeyExistAccount, e.message)
	case KindMessages, KindValidate:
		return copyErrors(e.fields)
	case KindDatabase:
		return NewError(KeyDatabase, MsgServerError)
	case KindElastic:
		return NewError(KeyElastic, MsgServerError)
	case KindSystem:
		return NewError(KeySystem, MsgServerError)
	case KindJSON:
		return NewError(KeyJSON, MsgJSONFormat)
	case KindOther:
		return NewError(KeyOther, MsgServerError)
	}
	panic("apperr: invalid kind " + e.kind.String())
}

// SystemErrors returns the operator view: UserErrors with the internal
// message of Database, Elastic, System and Other kept.
func (e *Error) SystemErrors() Errors {
	switch e.kind {
	case KindAuthorization:
		return NewError(KeyAuthorization, e.message)
	case KindNotFound:
		return NewError(KeyNotFound, e.message)
	case KindConversion:
		return NewError(KeyConversion, e.message)
	case KindExistAccount:
		return NewError(KeyExistAccount, e.message)
	case KindMessages, KindValidate:
		return copyErrors(e.fields)
	case KindDatabase:
		return NewError(KeyDatabase, e.message)
	case KindElastic:
		return NewError(KeyElastic, e.message)
	case KindSystem:
		return NewError(KeySystem, e.message)
	case KindJSON:
		return NewError(KeyJSON, MsgJSONFormat)
	case KindOther:
		return NewError(KeyOther, e.message)
	}
	panic("apperr: invalid kind " + e.kind.String())
}

// StatusCode maps the kind to its HTTP status.
func (e *Error) StatusCode() int {
	switch e.kind {
	case KindAuthorization:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindDatabase, KindElastic:
		return http.StatusInternalServerError
	case KindMessages, KindValidate, KindConversion, KindExistAccount,
		KindSystem, KindOther, KindJSON:
		return http.StatusUnprocessableEntity
	}
	panic("apperr: invalid kind " + e.kind.String())
}

// Error renders every "key: message" pair of SystemErrors, one per line,
// with keys in sorted order.
func (e *Error) Error() string {
	view := e.SystemErrors()
	var b strings.Builder
	for _, k := range sortedKeys(view) {
		for _, m := range view[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(m)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Body is the JSON envelope shared by responses and serialization.
type Body struct {
	Errors Errors `json:"errors"`
}

// MarshalJSON emits {"errors": UserErrors()}.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(Body{Errors: e.UserErrors()})
}

// As reports whether err is or wraps an *Error and returns it.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}

// copyErrors deep-copies in, dropping keys whose message list is empty so
// that every key in a view carries at least one message.
func copyErrors(in Errors) Errors {
	out := make(Errors, len(in))
	for k, msgs := range in {
		if len(msgs) == 0 {
			continue
		}
		out[k] = append([]string(nil), msgs...)
	}
	return out
}

func sortedKeys(m Errors) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
