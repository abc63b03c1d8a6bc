// Package errors classifies collection failures so they can be isolated,
// serialized into the output tree, and inspected after the run.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is the failure class of a StructuredError.
type Kind string

const (
	// KindConfiguration marks missing or invalid required input. Fatal to the run.
	KindConfiguration Kind = "CONFIGURATION"
	// KindConnectivity marks a transport failure or a non-success HTTP status.
	KindConnectivity Kind = "CONNECTIVITY"
	// KindParse marks a response whose structure could not be decoded.
	KindParse Kind = "PARSE"
	// KindDuplicate marks a second write of an artifact key that already exists.
	KindDuplicate Kind = "DUPLICATE"
	// KindInternal marks anything that does not fit the classes above.
	KindInternal Kind = "INTERNAL"
)

// StructuredError carries a failure class, a message, the underlying cause,
// and optional context (URL, status, node, core) for the error artifact.
type StructuredError struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As support.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a StructuredError with the given kind and message.
func New(kind Kind, message string) *StructuredError {
	return &StructuredError{Kind: kind, Message: message}
}

// Wrap wraps cause with a kind and message.
func Wrap(kind Kind, message string, cause error) *StructuredError {
	return &StructuredError{Kind: kind, Message: message, Cause: cause}
}

// WrapWithContext wraps cause and attaches context for the error artifact.
func WrapWithContext(kind Kind, message string, cause error, context map[string]any) *StructuredError {
	return &StructuredError{Kind: kind, Message: message, Cause: cause, Context: context}
}

// KindOf returns the kind of the outermost StructuredError in err's chain,
// or KindInternal when there is none. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind reports whether any StructuredError in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var se *StructuredError
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Kind == kind {
			return true
		}
		err = se.Cause
	}
	return false
}

// ContextOf merges the Context maps of every StructuredError in err's chain.
// Outer values win over inner ones.
func ContextOf(err error) map[string]any {
	out := map[string]any{}
	var chain []*StructuredError
	for err != nil {
		var se *StructuredError
		if !stderrors.As(err, &se) {
			break
		}
		chain = append(chain, se)
		err = se.Cause
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].Context {
			out[k] = v
		}
	}
	return out
}
