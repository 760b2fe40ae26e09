package vm

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors wrapped by runtime failures. Match with errors.Is.
var (
	ErrStackOverflow = errors.New("stack overflow")
	ErrPermission    = errors.New("permission denied")
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrNotCallable   = errors.New("value is not callable")
	ErrBadOperands   = errors.New("bad operand types")
	ErrNoSuchMember  = errors.New("no such member")
	ErrIndexRange    = errors.New("index out of range")
	ErrDivideByZero  = errors.New("division by zero")
	ErrStackBounds   = errors.New("declared max stack exceeded")
)

// TraceFrame is one chunk boundary an error passed through.
type TraceFrame struct {
	Name   string
	Source string
	Line   int
}

func (f TraceFrame) String() string {
	name := f.Name
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("%s (%s:%d)", name, f.Source, f.Line)
}

// Error is a runtime error. It is both a language value (what a catch block
// binds) and a Go error (what the host receives when nothing catches it).
type Error struct {
	Message string
	Source  string
	Line    int
	Trace   []TraceFrame

	value Value // thrown value, Null for engine-raised errors
	cause error // wrapped Go error, if any
}

// NewError creates an error value with a message.
func NewError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), value: Null}
}

// ThrownError wraps a value raised by THROW.
func ThrownError(v Value) *Error {
	if e, ok := v.(*Error); ok {
		return e
	}
	return &Error{Message: v.String(), value: orNull(v)}
}

// WrapError converts a Go error into an error value, keeping it for
// errors.Is / errors.As.
func WrapError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Message: err.Error(), value: Null, cause: err}
}

func (e *Error) Type() Type { return TypeError }

func (e *Error) String() string { return e.Error() }

func (e *Error) Error() string {
	if e.Source == "" && e.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Value returns the thrown value, or Null for engine-raised errors.
func (e *Error) Value() Value { return orNull(e.value) }

// StackTrace renders the error and every frame it crossed.
func (e *Error) StackTrace() string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	for _, f := range e.Trace {
		sb.WriteString("\n\tat ")
		sb.WriteString(f.String())
	}
	return sb.String()
}

// locate stamps the origin of an error the first time it is raised.
func (e *Error) locate(source string, line int) {
	if e.Source == "" && e.Line == 0 {
		e.Source = source
		e.Line = line
	}
}

// member implements the error's script-visible fields.
func (e *Error) member(name string) (Value, bool) {
	switch name {
	case "message":
		return String(e.Message), true
	case "source":
		return String(e.Source), true
	case "line":
		return Int(e.Line), true
	case "value":
		return e.Value(), true
	case "trace":
		frames := make([]Value, len(e.Trace))
		for i, f := range e.Trace {
			frames[i] = String(f.String())
		}
		return NewArray(frames...), true
	}
	return Null, false
}
