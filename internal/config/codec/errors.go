package codec

import (
	"errors"
	"fmt"
)

// Errors returned by codec operations.
var (
	// ErrValidation indicates an edited value was rejected.
	ErrValidation = errors.New("validation failed")

	// ErrDecode indicates a stored value could not be decoded.
	ErrDecode = errors.New("decode failed")

	// ErrNotOrderable indicates a range was requested for a type without ordering.
	ErrNotOrderable = errors.New("type is not orderable")
)

// Code categorizes validation errors.
type Code uint8

const (
	// CodeTypeMismatch indicates the value has the wrong type.
	CodeTypeMismatch Code = iota
	// CodeOutOfRange indicates an ordered value is outside its bounds.
	CodeOutOfRange
	// CodeInvalidEnum indicates the value is not one of the allowed choices.
	CodeInvalidEnum
	// CodePatternMismatch indicates a string does not match the required pattern.
	CodePatternMismatch
	// CodeRejected indicates a custom validator refused the value.
	CodeRejected
	// CodeMalformed indicates the value could not be parsed or converted.
	CodeMalformed
	// CodeLength indicates a list has too few or too many elements.
	CodeLength
)

// String returns a human-readable name for the code.
func (c Code) String() string {
	switch c {
	case CodeTypeMismatch:
		return "type_mismatch"
	case CodeOutOfRange:
		return "out_of_range"
	case CodeInvalidEnum:
		return "invalid_enum"
	case CodePatternMismatch:
		return "pattern_mismatch"
	case CodeRejected:
		return "rejected"
	case CodeMalformed:
		return "malformed"
	case CodeLength:
		return "length"
	default:
		return "unknown"
	}
}

// ValidationError describes an edited value that a codec refused.
// The entry keeps its previous value when Set returns one of these.
type ValidationError struct {
	// Path is the entry path. Codecs leave it empty; the tree fills it in.
	Path string
	// Code categorizes the failure.
	Code Code
	// Message describes the failure for display.
	Message string
	// Value is the rejected value.
	Value any
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s (value: %v)", e.Code, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s: %s (value: %v)", e.Path, e.Code, e.Message, e.Value)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// WithPath returns a copy of the error bound to path.
func (e *ValidationError) WithPath(path string) *ValidationError {
	cp := *e
	cp.Path = path
	return &cp
}

// DecodeError describes a stored value that could not be decoded, usually
// because the backing store was edited out of band. Callers recover by
// falling back to the entry default.
type DecodeError struct {
	// Path is the entry path.
	Path string
	// Value is the raw stored value.
	Value any
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v (value: %v)", e.Path, e.Err, e.Value)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func invalid(code Code, value any, format string, args ...any) *ValidationError {
	return &ValidationError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Value:   value,
	}
}
