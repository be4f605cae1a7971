// Copyright © 2018 One Concern

package model

import (
	"fmt"
	"sort"
)

// Node is an immutable, content-addressed node: a set of named properties
// and a collection of named child references.
//
// Two nodes with the same content always have the same ID. Any change produces
// a new node (see Mutate), with a new ID.
type Node struct {
	id         ID
	properties map[string]string // name -> JSON encoded value
	children   *ChildEntries
}

// ItemKind tells what a name designates in a node
type ItemKind uint8

// Kinds of named items in a node
const (
	Absent ItemKind = iota
	PropertyItem
	ChildItem
)

// Item is the result of looking up a name in a node
type Item struct {
	Kind  ItemKind
	Value string     // JSON encoded property value, when Kind is PropertyItem
	Child ChildEntry // child reference, when Kind is ChildItem
}

// EmptyNode builds a node with no properties and no children
func EmptyNode(ordered bool) *Node {
	n, _ := NewMutableNode(ordered).Build()
	return n
}

// ID of this node
func (n *Node) ID() ID {
	return n.id
}

// Ordered tells if the children of this node preserve insertion order
func (n *Node) Ordered() bool {
	return n.children.Ordered()
}

// Get looks up a name as a property, then as a child
func (n *Node) Get(name string) Item {
	if value, ok := n.properties[name]; ok {
		return Item{Kind: PropertyItem, Value: value}
	}
	if child, ok := n.children.Get(name); ok {
		return Item{Kind: ChildItem, Child: child}
	}
	return Item{Kind: Absent}
}

// Property returns the JSON encoded value of a property
func (n *Node) Property(name string) (string, bool) {
	value, ok := n.properties[name]
	return value, ok
}

// PropertyCount yields the number of properties
func (n *Node) PropertyCount() int {
	return len(n.properties)
}

// PropertyNames returns the sorted names of all properties
func (n *Node) PropertyNames() []string {
	return sortedKeys(n.properties)
}

// Child returns a child entry by name
func (n *Node) Child(name string) (ChildEntry, bool) {
	return n.children.Get(name)
}

// ChildCount yields the number of children
func (n *Node) ChildCount() int {
	return n.children.Count()
}

// ChildNames returns the names of children, in iteration order
func (n *Node) ChildNames() []string {
	return n.children.Names()
}

// ChildEntries returns a window of child entries, in iteration order. A negative count means all.
func (n *Node) ChildEntries(offset, count int) []ChildEntry {
	return n.children.Entries(offset, count)
}

// DiffAdded returns the children of other which are not children of this node
func (n *Node) DiffAdded(other *Node) []ChildEntry {
	return n.children.Added(other.children)
}

// DiffRemoved returns the children of this node which are not children of other
func (n *Node) DiffRemoved(other *Node) []ChildEntry {
	return n.children.Removed(other.children)
}

// DiffModified returns the children present in both nodes, but with a different id
func (n *Node) DiffModified(other *Node) []ChildEntry {
	return n.children.Modified(other.children)
}

// Mutate returns a mutable copy of this node
func (n *Node) Mutate() *MutableNode {
	props := make(map[string]string, len(n.properties))
	for k, v := range n.properties {
		props[k] = v
	}
	return &MutableNode{
		properties: props,
		children:   n.children.Clone(),
	}
}

// MutableNode is the builder state used to derive new nodes
type MutableNode struct {
	properties map[string]string
	children   *ChildEntries
}

// NewMutableNode builds an empty mutable node
func NewMutableNode(ordered bool) *MutableNode {
	return &MutableNode{
		properties: make(map[string]string),
		children:   NewChildEntries(ordered),
	}
}

// Ordered tells if children preserve insertion order
func (m *MutableNode) Ordered() bool {
	return m.children.Ordered()
}

// Property returns the JSON encoded value of a property
func (m *MutableNode) Property(name string) (string, bool) {
	value, ok := m.properties[name]
	return value, ok
}

// HasProperty tells if a property exists
func (m *MutableNode) HasProperty(name string) bool {
	_, ok := m.properties[name]
	return ok
}

// SetProperty sets a JSON encoded property value
func (m *MutableNode) SetProperty(name, value string) {
	m.properties[name] = value
}

// RemoveProperty removes a property. It returns false if the property does not exist.
func (m *MutableNode) RemoveProperty(name string) bool {
	if !m.HasProperty(name) {
		return false
	}
	delete(m.properties, name)
	return true
}

// Child returns a child entry by name
func (m *MutableNode) Child(name string) (ChildEntry, bool) {
	return m.children.Get(name)
}

// HasChild tells if a child exists
func (m *MutableNode) HasChild(name string) bool {
	return m.children.Has(name)
}

// AddChild adds a child reference. The id may be left empty until the child is persisted.
// It returns false if the name is already taken.
func (m *MutableNode) AddChild(name string, id ID) bool {
	return m.children.Add(name, id)
}

// SetChildID sets the id of a child, keeping its position
func (m *MutableNode) SetChildID(name string, id ID) {
	m.children.Set(name, id)
}

// RemoveChild removes a child reference. It returns false if the child does not exist.
func (m *MutableNode) RemoveChild(name string) bool {
	return m.children.Remove(name)
}

// RenameChild renames a child reference, keeping its position when ordered
func (m *MutableNode) RenameChild(oldName, newName string) bool {
	return m.children.Rename(oldName, newName)
}

// Clone this builder state
func (m *MutableNode) Clone() *MutableNode {
	props := make(map[string]string, len(m.properties))
	for k, v := range m.properties {
		props[k] = v
	}
	return &MutableNode{
		properties: props,
		children:   m.children.Clone(),
	}
}

// Build an immutable node and compute its content id.
//
// All child references must carry an id.
func (m *MutableNode) Build() (*Node, error) {
	for _, entry := range m.children.Entries(0, -1) {
		if entry.ID.IsZero() {
			return nil, fmt.Errorf("child %q has no id", entry.Name)
		}
	}
	n := m.Clone()
	node := &Node{
		properties: n.properties,
		children:   n.children,
	}
	data, err := EncodeNode(node)
	if err != nil {
		return nil, err
	}
	node.id, err = ComputeID(data)
	if err != nil {
		return nil, err
	}
	return node, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
