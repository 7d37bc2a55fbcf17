package tree

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by tree operations.
var (
	// ErrNotFound indicates a path does not resolve to a node.
	ErrNotFound = errors.New("path not found")

	// ErrNotEntry indicates a path resolves to a group where an entry was expected.
	ErrNotEntry = errors.New("path is not an entry")

	// ErrTypeMismatch indicates a typed lookup used the wrong type parameters.
	ErrTypeMismatch = errors.New("entry type mismatch")

	// ErrDuplicateName indicates two siblings share a name.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrBuilderContract indicates an invalid builder declaration.
	ErrBuilderContract = errors.New("builder contract violated")

	// ErrUnreconciled indicates a commit was attempted with external changes pending.
	ErrUnreconciled = errors.New("unreconciled external changes")

	// ErrPersistence indicates the backing store or sync channel failed.
	ErrPersistence = errors.New("persistence failed")

	// ErrBake indicates the baker failed.
	ErrBake = errors.New("bake failed")

	// ErrTreeExists indicates a live tree already uses the identity key.
	ErrTreeExists = errors.New("tree already exists")

	// ErrNoChannel indicates a remote tree has no sync channel.
	ErrNoChannel = errors.New("remote tree has no sync channel")
)

// DuplicateNameError is returned at build time when a group already has a
// child with the same name. The group is left unchanged.
type DuplicateNameError struct {
	// Group is the path of the parent group.
	Group string
	// Name is the rejected child name.
	Name string
}

// Error implements the error interface.
func (e *DuplicateNameError) Error() string {
	if e.Group == "" {
		return fmt.Sprintf("duplicate name %q at root", e.Name)
	}
	return fmt.Sprintf("duplicate name %q in group %s", e.Name, e.Group)
}

// Is reports whether target is ErrDuplicateName.
func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}

// BuilderContractError describes an invalid declaration, such as a range on
// a type without ordering or a default that fails validation.
type BuilderContractError struct {
	// Node is the path of the offending node.
	Node string
	// Option names the builder option at fault.
	Option string
	// Reason describes the violation.
	Reason string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *BuilderContractError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Node, e.Option, e.Reason)
}

// Unwrap returns the underlying error.
func (e *BuilderContractError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrBuilderContract.
func (e *BuilderContractError) Is(target error) bool {
	return target == ErrBuilderContract
}

// UnreconciledStateError is returned by Commit on a remote tree while
// external changes await resolution.
type UnreconciledStateError struct {
	// Tree is the identity key.
	Tree string
	// Paths lists the externally changed entries.
	Paths []string
}

// Error implements the error interface.
func (e *UnreconciledStateError) Error() string {
	return fmt.Sprintf("tree %s: %d unreconciled external changes (%s)", e.Tree, len(e.Paths), strings.Join(e.Paths, ", "))
}

// Is reports whether target is ErrUnreconciled.
func (e *UnreconciledStateError) Is(target error) bool {
	return target == ErrUnreconciled
}

// PersistenceError wraps a failure of the backing store or sync channel. The
// tree keeps its in-memory state, so retrying the same commit is safe.
type PersistenceError struct {
	// Tree is the identity key.
	Tree string
	// Op is the failed operation: load, save, patch, fetch or push.
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("tree %s: %s: %v", e.Tree, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// BakeError wraps a baker failure. It never undoes a commit.
type BakeError struct {
	// Tree is the identity key.
	Tree string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *BakeError) Error() string {
	return fmt.Sprintf("tree %s: bake: %v", e.Tree, e.Err)
}

// Unwrap returns the underlying error.
func (e *BakeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrBake.
func (e *BakeError) Is(target error) bool {
	return target == ErrBake
}
