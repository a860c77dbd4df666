package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine readable class of a failure
type Kind string

const (
	KindInvalidInput       Kind = "INVALID_INPUT"
	KindNotFound           Kind = "NOT_FOUND"
	KindInsufficientStock  Kind = "INSUFFICIENT_STOCK"
	KindConflict           Kind = "CONFLICT"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	KindInternal           Kind = "INTERNAL"
)

// Metadata describes how a kind is surfaced to callers
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// Opaque kinds never expose the wrapped message.
	Opaque bool
}

var metadataByKind = map[Kind]Metadata{
	KindInvalidInput: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "invalid input",
	},
	KindNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	KindInsufficientStock: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "import quantity exceeds available quantity",
	},
	KindConflict: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "conflicting request",
	},
	KindStorageUnavailable: {
		HTTPStatus:    http.StatusServiceUnavailable,
		Retryable:     true,
		PublicMessage: "storage unavailable, retry later",
	},
	KindInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		PublicMessage: "internal server error",
		Opaque:        true,
	},
}

// MetadataFor returns the metadata of kind, falling back to Internal.
func MetadataFor(kind Kind) Metadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[KindInternal]
}

// Error is a classified failure returned at service boundaries
type Error struct {
	kind    Kind
	message string
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{kind: kind, message: message, cause: err}
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// PublicMessage is the message safe to hand to a client.
func (e *Error) PublicMessage() string {
	meta := MetadataFor(e.Kind())
	if meta.Opaque || e.Message() == "" {
		return meta.PublicMessage
	}
	return e.message
}

func (e *Error) Retryable() bool {
	return MetadataFor(e.Kind()).Retryable
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts an *Error from err's chain.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// KindOf reports the kind of err; unclassified errors are Internal.
func KindOf(err error) Kind {
	if typed := As(err); typed != nil {
		return typed.Kind()
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
