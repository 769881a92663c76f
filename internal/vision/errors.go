package vision

import (
	"errors"
	"fmt"
)

// Kind classifies a tool failure.
type Kind string

// Failure kinds reported to callers. The string value is what clients see.
const (
	KindToolNotFound    Kind = "ToolNotFound"
	KindInvalidArgument Kind = "InvalidArgument"
	KindImageLoad       Kind = "ImageLoadError"
	KindModelInvocation Kind = "ModelInvocationError"
)

// Error is a classified tool failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ToolNotFound reports an unregistered tool name.
func ToolNotFound(name string) *Error {
	return &Error{Kind: KindToolNotFound, Message: fmt.Sprintf("unknown tool %q", name)}
}

// InvalidArgument reports a missing or malformed argument.
func InvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// ImageLoadFailed reports a source that could not be fetched or decoded.
func ImageLoadFailed(ref string, err error) *Error {
	return &Error{Kind: KindImageLoad, Message: fmt.Sprintf("failed to load %q", ref), Err: err}
}

// ModelInvocationFailed reports a failure inside a model pipeline.
func ModelInvocationFailed(msg string, err error) *Error {
	return &Error{Kind: KindModelInvocation, Message: msg, Err: err}
}

// KindOf returns the kind of err. Unclassified errors count as model
// invocation failures since they escaped from a pipeline.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindModelInvocation
}
