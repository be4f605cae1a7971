package model

import (
	"fmt"
)

// nodeRecord is the serialized form of a node.
//
// Properties are sorted by name, children follow the iteration order of the node.
type nodeRecord struct {
	Ordered    bool        `json:"ordered,omitempty"`
	Properties [][2]string `json:"properties,omitempty"`
	Children   [][2]string `json:"children,omitempty"`
}

// EncodeNode serializes a node. The encoding is deterministic: it is the input to the content id.
func EncodeNode(n *Node) ([]byte, error) {
	rec := nodeRecord{
		Ordered: n.children.Ordered(),
	}
	for _, name := range sortedKeys(n.properties) {
		rec.Properties = append(rec.Properties, [2]string{name, n.properties[name]})
	}
	for _, entry := range n.children.Entries(0, -1) {
		rec.Children = append(rec.Children, [2]string{entry.Name, string(entry.ID)})
	}
	return codec.Marshal(rec)
}

// DecodeNode deserializes a node stored under some id
func DecodeNode(id ID, data []byte) (*Node, error) {
	var rec nodeRecord
	if err := codec.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding node %s: %w", id, err)
	}
	node := &Node{
		id:         id,
		properties: make(map[string]string, len(rec.Properties)),
		children:   NewChildEntries(rec.Ordered),
	}
	for _, prop := range rec.Properties {
		node.properties[prop[0]] = prop[1]
	}
	for _, child := range rec.Children {
		if !node.children.Add(child[0], ID(child[1])) {
			return nil, fmt.Errorf("decoding node %s: duplicate child %q", id, child[0])
		}
	}
	return node, nil
}

// EncodeCommit serializes a commit record
func EncodeCommit(c *Commit) ([]byte, error) {
	return codec.Marshal(c)
}

// DecodeCommit deserializes a commit record
func DecodeCommit(data []byte) (*Commit, error) {
	var c Commit
	if err := codec.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding commit: %w", err)
	}
	return &c, nil
}
