// Package deviceerr classifies failures that happen while talking to the
// espresso machine and turns them into messages safe to show to a caller.
package deviceerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the failure class of an Error.
type Kind int

const (
	// KindGeneric covers any error raised while processing that is not a
	// transport or status failure.
	KindGeneric Kind = iota
	// KindConnection means no response reached us (refused, DNS, timeout).
	KindConnection
	// KindAPI means the machine answered with a non-success status.
	KindAPI
	// KindUnknown means something that was not an error value was raised.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindAPI:
		return "api"
	case KindGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// Error is a classified failure of a single device operation.
type Error struct {
	Kind Kind
	// Op is a short description of what was attempted, e.g. "fetching shot 42".
	Op string
	// Message is the underlying cause without the operation prefix.
	Message string
	// StatusCode is set for KindAPI when the machine reported one.
	StatusCode int
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConnection:
		return fmt.Sprintf("Connection error while %s: %s", e.Op, e.Message)
	case KindAPI:
		return fmt.Sprintf("API error while %s: %s", e.Op, e.Message)
	case KindGeneric:
		return fmt.Sprintf("Error while %s: %s", e.Op, e.Message)
	default:
		return fmt.Sprintf("Unknown error while %s", e.Op)
	}
}

func Connection(op, message string) *Error {
	return &Error{Kind: KindConnection, Op: op, Message: message}
}

func API(op string, statusCode int, message string) *Error {
	return &Error{Kind: KindAPI, Op: op, Message: message, StatusCode: statusCode}
}

func Generic(op, message string) *Error {
	return &Error{Kind: KindGeneric, Op: op, Message: message}
}

func Unknown(op string) *Error {
	return &Error{Kind: KindUnknown, Op: op}
}

// FromPanic classifies a recovered panic value. Error values keep their
// message; anything else is unknown.
func FromPanic(v any, op string) *Error {
	if err, ok := v.(error); ok {
		var classified *Error
		if errors.As(err, &classified) {
			return classified
		}
		return Generic(op, err.Error())
	}
	return Unknown(op)
}

// KindOf returns the kind of err. Unclassified non-nil errors are generic.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// Translate renders err as the single line shown to the caller. context
// describes the attempted operation and is used when nothing better is known.
func Translate(err error, context string) string {
	if err == nil {
		return fmt.Sprintf("An unknown error occurred while %s", context)
	}

	var e *Error
	if !errors.As(err, &e) {
		return fmt.Sprintf("An error occurred: %s", err.Error())
	}

	switch e.Kind {
	case KindConnection:
		return fmt.Sprintf("Could not connect to the espresso machine: %s", e.Error())
	case KindAPI:
		if e.StatusCode == http.StatusNotFound {
			return fmt.Sprintf("Resource not found: %s", e.Error())
		}
		return fmt.Sprintf("API error: %s", e.Error())
	case KindGeneric:
		return fmt.Sprintf("An error occurred: %s", e.Error())
	default:
		return fmt.Sprintf("An unknown error occurred while %s", context)
	}
}
