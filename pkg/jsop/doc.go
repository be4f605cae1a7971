// Copyright © 2018 One Concern

// Package jsop reads and writes JSOP diffs.
//
// A diff is a sequence of operations, each scoped to a path:
//
//	+"path" : {json object}   add a node with its properties and children
//	+"path/prop" : value      add a property
//	-"path"                   remove a node
//	>"path" : "newPath"       move a node
//	*"path" : "newPath"       copy a node
//	^"path/prop" : value      set a property, or remove it with null
//
// Paths are JSON strings, relative to the path the diff is applied at,
// unless they start with a slash.
package jsop
