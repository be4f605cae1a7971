// Copyright © 2018 One Concern

package model

import "time"

// Commit is a revision in the DAG: a root node reached from a parent commit by
// applying some changes.
type Commit struct {
	ID           Revision  `json:"id" yaml:"id"`
	ParentID     Revision  `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	BaseRevision Revision  `json:"baseRevision,omitempty" yaml:"baseRevision,omitempty"` // revision the changes were based on
	BranchID     string    `json:"branchId,omitempty" yaml:"branchId,omitempty"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	Message      string    `json:"message,omitempty" yaml:"message,omitempty"`
	RootNodeID   ID        `json:"rootNodeId" yaml:"rootNodeId"`
	Changes      string    `json:"changes,omitempty" yaml:"changes,omitempty"` // diff as submitted

	// AffectedPaths are the paths of the nodes changed by this commit
	AffectedPaths []string `json:"affectedPaths,omitempty" yaml:"affectedPaths,omitempty"`

	// Failed marks commits which lost the race to become the head
	Failed bool `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// IsBranch tells if this commit lives on a branch rather than on the trunk
func (c *Commit) IsBranch() bool {
	return c.BranchID != ""
}

// IsBootstrap tells if this commit is the initial commit of a repository
func (c *Commit) IsBootstrap() bool {
	return c.ParentID.IsZero()
}

// NewTimestamp yields the timestamp for a new commit
func NewTimestamp() time.Time {
	return time.Now().UTC()
}
