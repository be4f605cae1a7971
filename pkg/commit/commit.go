// Copyright © 2018 One Concern

// Package commit builds commits from JSOP diffs and applies them to node trees.
package commit

import (
	"context"

	"github.com/oneconcern/microkernel/pkg/jsop"
	"github.com/oneconcern/microkernel/pkg/model"
)

// Commit is a parsed commit, not yet attached to any revision
type Commit struct {
	Path         string
	Diff         string
	Message      string
	Instructions []jsop.Instruction
}

// Build parses a diff into a commit.
//
// Errors match status.ErrSyntax: nothing has been applied or persisted at this point.
func Build(path, diff, message string) (*Commit, error) {
	instructions, err := jsop.Parse(path, diff)
	if err != nil {
		return nil, err
	}
	return &Commit{
		Path:         path,
		Diff:         diff,
		Message:      message,
		Instructions: instructions,
	}, nil
}

// Apply folds the instructions of this commit over a staged tree, left to right.
// The first failing instruction aborts the fold.
func (c *Commit) Apply(ctx context.Context, tree *Tree) error {
	for _, instruction := range c.Instructions {
		if err := tree.Apply(ctx, instruction); err != nil {
			return err
		}
	}
	return nil
}

// Record yields the persisted form of this commit, once applied and assigned a revision
func (c *Commit) Record(rev, parent, base model.Revision, rootID model.ID, affected []string) *model.Commit {
	return &model.Commit{
		ID:            rev,
		ParentID:      parent,
		BaseRevision:  base,
		Timestamp:     model.NewTimestamp(),
		Message:       c.Message,
		RootNodeID:    rootID,
		Changes:       c.Diff,
		AffectedPaths: affected,
	}
}
