// Copyright © 2018 One Concern

// Package storage provides an interface to handle objects in a key/value backend storage.
//
// This package supports the following backends:
//   - local file system, or in-memory file system (localfs)
package storage
