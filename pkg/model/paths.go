package model

import (
	"fmt"
	"strings"
)

// Root is the path of the root node
const Root = "/"

// IsAbsolute tells if a path starts at the root
func IsAbsolute(pth string) bool {
	return strings.HasPrefix(pth, Root)
}

// DenotesRoot tells if a path designates the root node
func DenotesRoot(pth string) bool {
	return pth == Root
}

// ValidatePath checks that a path is made of non-empty names.
//
// Relative paths are accepted. A trailing slash is only accepted for the root.
func ValidatePath(pth string) error {
	if pth == "" {
		return fmt.Errorf("empty path")
	}
	if DenotesRoot(pth) {
		return nil
	}
	for _, name := range strings.Split(strings.TrimPrefix(pth, Root), "/") {
		if err := ValidateName(name); err != nil {
			return fmt.Errorf("path %q: %w", pth, err)
		}
	}
	return nil
}

// ValidateName checks a single node or property name
func ValidateName(name string) error {
	switch name {
	case "":
		return fmt.Errorf("empty name")
	case ".", "..":
		return fmt.Errorf("illegal name %q", name)
	}
	return nil
}

// Names splits an absolute path into its names. The root yields no names.
func Names(pth string) []string {
	trimmed := strings.Trim(pth, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Concat joins a parent path with a relative one.
//
// An absolute relative part is returned as is.
func Concat(parent, rel string) string {
	switch {
	case rel == "":
		return parent
	case IsAbsolute(rel) || parent == "":
		return rel
	case strings.HasSuffix(parent, "/"):
		return parent + rel
	default:
		return parent + "/" + rel
	}
}

// Split separates the parent path from the last name of a path
func Split(pth string) (parent, name string) {
	idx := strings.LastIndex(pth, "/")
	switch {
	case idx < 0:
		return "", pth
	case idx == 0:
		return Root, pth[1:]
	default:
		return pth[:idx], pth[idx+1:]
	}
}

// IsAncestor tells if ancestor is a strict ancestor of pth
func IsAncestor(ancestor, pth string) bool {
	if DenotesRoot(ancestor) {
		return !DenotesRoot(pth) && IsAbsolute(pth)
	}
	return strings.HasPrefix(pth, ancestor+"/")
}
