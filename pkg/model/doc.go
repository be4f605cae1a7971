// Package model describes the objects held by the content store.
//
//  Nodes:
//    A node holds named properties and named references to child nodes. Nodes are immutable,
//    and identified by the hash of their canonical encoding: equal content yields equal ids.
//
//  Commits:
//    A commit records the root node of a revision, with its parent revision and the diff
//    which produced it. Revisions are issued by a counter.
//
//  Paths:
//    Nodes are addressed by slash-separated paths from the root of a revision.
package model
