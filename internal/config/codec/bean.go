package codec

import (
	"encoding/json"
)

// Bean stores a struct as a string-keyed map using the struct's JSON field
// names. Unknown keys in stored maps are ignored so older files still load.
type Bean[T any] struct {
	validate func(T) error
}

// NewBean creates a bean codec. validate may be nil.
func NewBean[T any](validate func(T) error) Bean[T] {
	return Bean[T]{validate: validate}
}

// Decode converts stored into T.
func (b Bean[T]) Decode(stored map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(stored)
	if err != nil {
		return out, &ValidationError{Code: CodeMalformed, Message: err.Error(), Value: stored, Err: err}
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, &ValidationError{Code: CodeTypeMismatch, Message: err.Error(), Value: stored, Err: err}
	}
	return out, nil
}

// Encode validates edited and converts it into a map.
func (b Bean[T]) Encode(edited T) (map[string]any, error) {
	if b.validate != nil {
		if _, err := Predicate(b.validate)(edited); err != nil {
			return nil, err
		}
	}
	data, err := json.Marshal(edited)
	if err != nil {
		return nil, &ValidationError{Code: CodeMalformed, Message: err.Error(), Value: edited, Err: err}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &ValidationError{Code: CodeTypeMismatch, Message: "bean must encode to an object", Value: edited, Err: err}
	}
	return out, nil
}
