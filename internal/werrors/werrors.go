// Package werrors defines the typed error kinds of spec §7, grounded on
// fs/vmd.go's StorageIntegrityError (a code plus a formatted message) and
// authn/utils.go's sentinel errors (ErrNoPermissions, ErrInvalidToken, ...).
// Every "throws" in the original C++ source becomes one of these.
package werrors

import "fmt"

type Kind int

const (
	KindProtocol   Kind = iota // bad framing, oversize message, unknown message id
	KindAuth                   // action attempted without permission
	KindValidation             // field out of range, duplicate name, etc
	KindNotFound               // unknown URL / entity id
	KindIO                     // transient socket/disk error
	KindIntegrity              // store load: version mismatch, truncation
	KindExhausted              // resource exhaustion (e.g. mesh build allocation failure)
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindIO:
		return "io"
	case KindIntegrity:
		return "integrity"
	case KindExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Error is the typed error carried through the system in place of the
// original codebase's pervasive exceptions (see spec §9 "Exceptions for
// control flow").
type Error struct {
	Kind    Kind
	Message string
	// Code is the protocol Error{code,...} frame code or HTTP status,
	// when the error kind has a natural wire representation.
	Code int
	// Entity/Offset are populated for KindIntegrity errors identifying
	// the entity kind and byte offset the failure was found at, per
	// spec §4.1's "Mismatched version in an entity payload fails the
	// load with an error identifying the entity kind and offset."
	Entity string
	Offset int64
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindIntegrity:
		return fmt.Sprintf("integrity error: %s (entity=%s offset=%d)", e.Message, e.Entity, e.Offset)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Protocol(format string, args ...interface{}) *Error {
	return New(KindProtocol, format, args...)
}

func Auth(format string, args ...interface{}) *Error {
	return New(KindAuth, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func IO(format string, args ...interface{}) *Error {
	return New(KindIO, format, args...)
}

func Exhausted(format string, args ...interface{}) *Error {
	return New(KindExhausted, format, args...)
}

func Integrity(entity string, offset int64, format string, args ...interface{}) *Error {
	return &Error{Kind: KindIntegrity, Message: fmt.Sprintf(format, args...), Entity: entity, Offset: offset}
}

// Is reports whether err is a *Error of the given kind, for use with
// errors.Is at call sites that only care about the category.
func Is(err error, kind Kind) bool {
	we, ok := err.(*Error)
	return ok && we.Kind == kind
}
