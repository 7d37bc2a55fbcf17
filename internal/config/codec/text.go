package codec

import (
	"fmt"
	"regexp"
	"time"
)

// Pattern stores strings that must match a regular expression.
type Pattern struct {
	re *regexp.Regexp
}

// NewPattern compiles expr into a pattern codec.
func NewPattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid pattern: %w", err)
	}
	return Pattern{re: re}, nil
}

// MustPattern is NewPattern for expressions known at compile time.
func MustPattern(expr string) Pattern {
	p, err := NewPattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Decode checks stored against the pattern.
func (p Pattern) Decode(stored string) (string, error) {
	return p.Encode(stored)
}

// Encode checks edited against the pattern.
func (p Pattern) Encode(edited string) (string, error) {
	if !p.re.MatchString(edited) {
		return edited, invalid(CodePatternMismatch, edited, "does not match pattern %s", p.re)
	}
	return edited, nil
}

// Duration stores a time.Duration as a string such as "1m30s".
type Duration struct {
	// AllowNegative permits durations below zero.
	AllowNegative bool
}

// Decode parses stored.
func (d Duration) Decode(stored string) (time.Duration, error) {
	v, err := time.ParseDuration(stored)
	if err != nil {
		return 0, &ValidationError{Code: CodeMalformed, Message: "not a duration", Value: stored, Err: err}
	}
	return d.check(v)
}

// Encode formats edited.
func (d Duration) Encode(edited time.Duration) (string, error) {
	v, err := d.check(edited)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (d Duration) check(v time.Duration) (time.Duration, error) {
	if v < 0 && !d.AllowNegative {
		return v, invalid(CodeOutOfRange, v, "must not be negative")
	}
	return v, nil
}
