// Copyright © 2018 One Concern

package model

import "sort"

// ChildEntry is a named reference to a child node
type ChildEntry struct {
	Name string `json:"name" yaml:"name"`
	ID   ID     `json:"id" yaml:"id"`
}

// ChildEntries is a collection of named child references.
//
// When insertion ordered, iteration preserves the order in which entries were added
// and renaming an entry keeps its position. Otherwise, entries iterate by name.
type ChildEntries struct {
	ordered bool
	names   []string // insertion order, only maintained when ordered
	entries map[string]ID
}

// NewChildEntries builds an empty collection of child entries
func NewChildEntries(ordered bool) *ChildEntries {
	return &ChildEntries{
		ordered: ordered,
		entries: make(map[string]ID),
	}
}

// Ordered tells if this collection preserves insertion order
func (c *ChildEntries) Ordered() bool {
	return c.ordered
}

// Count the child entries
func (c *ChildEntries) Count() int {
	return len(c.entries)
}

// Get a child entry by name
func (c *ChildEntries) Get(name string) (ChildEntry, bool) {
	id, ok := c.entries[name]
	if !ok {
		return ChildEntry{}, false
	}
	return ChildEntry{Name: name, ID: id}, true
}

// Has tells if some named child exists
func (c *ChildEntries) Has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// Names of the child entries, in iteration order
func (c *ChildEntries) Names() []string {
	if c.ordered {
		names := make([]string, len(c.names))
		copy(names, c.names)
		return names
	}
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns a window of child entries, in iteration order.
//
// A negative count returns all entries after offset.
func (c *ChildEntries) Entries(offset, count int) []ChildEntry {
	names := c.Names()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(names) || count == 0 {
		return []ChildEntry{}
	}
	end := len(names)
	if count > 0 && offset+count < end {
		end = offset + count
	}
	result := make([]ChildEntry, 0, end-offset)
	for _, name := range names[offset:end] {
		result = append(result, ChildEntry{Name: name, ID: c.entries[name]})
	}
	return result
}

// Add a new child entry. It returns false if the name is already taken.
func (c *ChildEntries) Add(name string, id ID) bool {
	if c.Has(name) {
		return false
	}
	c.entries[name] = id
	if c.ordered {
		c.names = append(c.names, name)
	}
	return true
}

// Set the id of a child entry, appending the entry if it does not exist yet
func (c *ChildEntries) Set(name string, id ID) {
	if !c.Add(name, id) {
		c.entries[name] = id
	}
}

// Remove a child entry. It returns false if the name does not exist.
func (c *ChildEntries) Remove(name string) bool {
	if !c.Has(name) {
		return false
	}
	delete(c.entries, name)
	if c.ordered {
		for i, n := range c.names {
			if n == name {
				c.names = append(c.names[:i], c.names[i+1:]...)
				break
			}
		}
	}
	return true
}

// Rename a child entry. It returns false if the old name does not exist or the new one is taken.
func (c *ChildEntries) Rename(oldName, newName string) bool {
	if oldName == newName {
		return c.Has(oldName)
	}
	id, ok := c.entries[oldName]
	if !ok || c.Has(newName) {
		return false
	}
	delete(c.entries, oldName)
	c.entries[newName] = id
	if c.ordered {
		for i, n := range c.names {
			if n == oldName {
				c.names[i] = newName
				break
			}
		}
	}
	return true
}

// Clone this collection
func (c *ChildEntries) Clone() *ChildEntries {
	clone := NewChildEntries(c.ordered)
	for name, id := range c.entries {
		clone.entries[name] = id
	}
	if c.ordered {
		clone.names = make([]string, len(c.names))
		copy(clone.names, c.names)
	}
	return clone
}

// Equal compares the name to id mappings of two collections
func (c *ChildEntries) Equal(other *ChildEntries) bool {
	if other == nil || len(c.entries) != len(other.entries) {
		return false
	}
	for name, id := range c.entries {
		if otherID, ok := other.entries[name]; !ok || otherID != id {
			return false
		}
	}
	return true
}

// Added returns the entries of other which are not present here
func (c *ChildEntries) Added(other *ChildEntries) []ChildEntry {
	if c.Equal(other) {
		return nil
	}
	var added []ChildEntry
	for _, entry := range other.Entries(0, -1) {
		if !c.Has(entry.Name) {
			added = append(added, entry)
		}
	}
	return added
}

// Removed returns the entries present here but not in other
func (c *ChildEntries) Removed(other *ChildEntries) []ChildEntry {
	if c.Equal(other) {
		return nil
	}
	var removed []ChildEntry
	for _, entry := range c.Entries(0, -1) {
		if !other.Has(entry.Name) {
			removed = append(removed, entry)
		}
	}
	return removed
}

// Modified returns the entries present on both sides with a different id.
// The returned entries carry the id found here.
func (c *ChildEntries) Modified(other *ChildEntries) []ChildEntry {
	if c.Equal(other) {
		return nil
	}
	var modified []ChildEntry
	for _, entry := range c.Entries(0, -1) {
		if namesake, ok := other.Get(entry.Name); ok && namesake.ID != entry.ID {
			modified = append(modified, entry)
		}
	}
	return modified
}
