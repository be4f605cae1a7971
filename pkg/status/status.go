// Copyright © 2018 One Concern

// Package status declares the error kinds surfaced by the microkernel.
//
// Every error returned by a store or by the kernel matches one of these
// sentinels with errors.Is, so callers can tell a missing node from a
// lost commit race from a broken backend.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between the store packages and
// their implementations.
package status

import "github.com/oneconcern/microkernel/pkg/errors"

var (
	// ErrNotFound indicates that a referenced node, commit, revision, path or blob does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates that a commit lost an optimistic race after exhausting its retries,
	// or that an instruction precondition failed (e.g. adding an existing node)
	ErrConflict = errors.New("conflict")

	// ErrIllegalState indicates that a store is used before initialization, after close,
	// or is initialized twice
	ErrIllegalState = errors.New("illegal state")

	// ErrSyntax indicates a malformed diff
	ErrSyntax = errors.New("syntax error")

	// ErrBackend indicates that the persistence layer failed
	ErrBackend = errors.New("backend error")

	// ErrInvalidArgument indicates an invalid path, revision or parameter
	ErrInvalidArgument = errors.New("invalid argument")
)
