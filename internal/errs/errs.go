// Package errs defines the client-facing error taxonomy shared by the account
// workflow and profile engines. Every error is scoped to one request; the HTTP
// layer turns the Kind into a status code and the Detail/Fields into a body.
package errs

import (
	"errors"
	"sort"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindVerificationRequired
	KindConflict
	KindInvalidToken
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindVerificationRequired:
		return "verification required"
	case KindConflict:
		return "conflict"
	case KindInvalidToken:
		return "invalid token"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching on kind alone.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrAuthentication       = &Error{Kind: KindAuthentication}
	ErrVerificationRequired = &Error{Kind: KindVerificationRequired}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrInvalidToken         = &Error{Kind: KindInvalidToken}
	ErrNotFound             = &Error{Kind: KindNotFound}
)

// Error carries either a request-level Detail or per-field messages.
type Error struct {
	Kind   Kind
	Detail string
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString("; ")
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(strings.Join(e.Fields[k], " "))
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare sentinel of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Detail == "" && t.Fields == nil && t.Err == nil && t.Kind == e.Kind
}

func Validation(detail string) *Error {
	return &Error{Kind: KindValidation, Detail: detail}
}

func Authentication(detail string) *Error {
	return &Error{Kind: KindAuthentication, Detail: detail}
}

func VerificationRequired(detail string) *Error {
	return &Error{Kind: KindVerificationRequired, Detail: detail}
}

func Conflict(detail string) *Error {
	return &Error{Kind: KindConflict, Detail: detail}
}

func InvalidToken(detail string, cause error) *Error {
	return &Error{Kind: KindInvalidToken, Detail: detail, Err: cause}
}

func NotFound(detail string) *Error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

// Field builds a single-field validation error.
func Field(field, msg string) *Error {
	return &Error{Kind: KindValidation, Fields: map[string][]string{field: {msg}}}
}

// FieldErrors accumulates field messages across a validation pass.
type FieldErrors map[string][]string

func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Err returns nil when nothing was collected.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return &Error{Kind: KindValidation, Fields: map[string][]string(f)}
}

// KindOf reports the Kind of err, or zero when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
