// Copyright © 2018 One Concern

package model

import (
	"encoding/hex"
	"fmt"
	"strconv"

	blake2b "github.com/minio/blake2b-simd"
)

// IDSize is the size in bytes of a content id (blake2b-256)
const IDSize = 32

// ID is the content address of a node, i.e. the hex encoded hash of its serialized form
type ID string

// String representation of the id
func (id ID) String() string {
	return string(id)
}

// IsZero tells if this id is unset
func (id ID) IsZero() bool {
	return id == ""
}

// ComputeID hashes some serialized content into a content id
func ComputeID(data []byte) (ID, error) {
	hasher, err := blake2b.New(&blake2b.Config{Size: IDSize})
	if err != nil {
		// New only fails when configuration is wrong
		return "", err
	}
	_, _ = hasher.Write(data)
	return ID(hex.EncodeToString(hasher.Sum(nil))), nil
}

// Revision identifies a commit. Revisions are issued by a counter and are not content-addressed.
//
// The zero revision denotes "no revision", e.g. the parent of the bootstrap commit.
type Revision uint64

// String yields the external representation of a revision (hexadecimal)
func (r Revision) String() string {
	return strconv.FormatUint(uint64(r), 16)
}

// Key yields a fixed-width representation of the revision, which sorts like the revision number
func (r Revision) Key() string {
	return fmt.Sprintf("%016x", uint64(r))
}

// IsZero tells if this revision is unset
func (r Revision) IsZero() bool {
	return r == 0
}

// ParseRevision parses the external representation of a revision
func ParseRevision(s string) (Revision, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid revision %q: %w", s, err)
	}
	return Revision(v), nil
}
