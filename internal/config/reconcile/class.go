package reconcile

import (
	"fmt"
	"strings"

	"github.com/dshills/cfgtree/internal/config/codec"
)

// Class is the outcome of comparing one path's base, local and external value.
type Class uint8

const (
	// Unchanged: neither side changed the value.
	Unchanged Class = iota
	// LocalOnly: only the in-memory value changed.
	LocalOnly
	// ExternalOnly: only the persisted value changed.
	ExternalOnly
	// Conflicting: both sides changed the value to different results.
	Conflicting
	// Convergent: both sides made the same change.
	Convergent
)

var classNames = [...]string{"unchanged", "local-only", "external-only", "conflicting", "convergent"}

// String returns the class name.
func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", c)
}

// Classify compares the three values of one path with structural equality.
func Classify(base, local, external any) Class {
	localChanged := !codec.Equal(local, base)
	externalChanged := !codec.Equal(external, base)
	switch {
	case !localChanged && !externalChanged:
		return Unchanged
	case localChanged && !externalChanged:
		return LocalOnly
	case !localChanged && externalChanged:
		return ExternalOnly
	case codec.Equal(local, external):
		return Convergent
	default:
		return Conflicting
	}
}

// Policy selects how an external change is resolved.
type Policy uint8

const (
	// RejectExternal keeps the in-memory values and overwrites the store on the next commit.
	RejectExternal Policy = iota
	// AcceptAll adopts the external value at every path.
	AcceptAll
	// AcceptNonConflicting adopts external-only changes and keeps and flags conflicts.
	AcceptNonConflicting
)

var policyNames = [...]string{"reject", "accept-all", "accept-non-conflicting"}

// String returns the policy name accepted by ParsePolicy.
func (p Policy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("policy(%d)", p)
}

// ParsePolicy parses a policy name. Matching is case-insensitive and
// underscores may replace dashes.
func ParsePolicy(s string) (Policy, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	switch norm {
	case "reject", "reject-external":
		return RejectExternal, nil
	case "accept-all", "all":
		return AcceptAll, nil
	case "accept-non-conflicting", "non-conflicting", "merge":
		return AcceptNonConflicting, nil
	}
	return RejectExternal, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Outcome tells which side's value a path ends up with.
type Outcome uint8

const (
	// KeepLocal leaves the in-memory value in place.
	KeepLocal Outcome = iota
	// TakeExternal replaces the in-memory value with the external one.
	TakeExternal
)

// String returns "local" or "external".
func (o Outcome) String() string {
	if o == TakeExternal {
		return "external"
	}
	return "local"
}

// decide maps a class to an outcome under a policy. It is total.
func decide(p Policy, c Class) Outcome {
	switch p {
	case AcceptAll:
		return TakeExternal
	case AcceptNonConflicting:
		if c == ExternalOnly {
			return TakeExternal
		}
	}
	return KeepLocal
}
