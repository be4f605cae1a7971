package jsop

import (
	"fmt"

	"github.com/oneconcern/microkernel/pkg/model"
)

// Kind of edit instruction
type Kind uint8

// Instruction kinds
const (
	AddNode Kind = iota + 1
	RemoveNode
	MoveNode
	CopyNode
	AddProperty
	SetProperty
)

var kindNames = map[Kind]string{
	AddNode:     "AddNode",
	RemoveNode:  "RemoveNode",
	MoveNode:    "MoveNode",
	CopyNode:    "CopyNode",
	AddProperty: "AddProperty",
	SetProperty: "SetProperty",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Instruction is a single edit of the node tree.
//
// Fields are interpreted according to Kind:
//   - AddNode, RemoveNode: Path is the absolute parent path, Name the child name
//   - MoveNode, CopyNode: Path is the absolute source path, Dest the absolute destination path
//   - AddProperty, SetProperty: Path is the absolute node path, Name the property name and
//     Value its JSON encoding. A "null" value removes the property.
type Instruction struct {
	Kind  Kind
	Path  string
	Name  string
	Dest  string
	Value string
}

// Target yields the absolute path of the node or property this instruction creates or alters
func (i Instruction) Target() string {
	switch i.Kind {
	case MoveNode, CopyNode:
		return i.Dest
	default:
		return model.Concat(i.Path, i.Name)
	}
}

// IsNull tells if a property instruction removes the property
func (i Instruction) IsNull() bool {
	return i.Value == "null"
}

// TypedValue decodes the property value carried by this instruction
func (i Instruction) TypedValue() (interface{}, error) {
	return model.DecodeValue(i.Value)
}

func (i Instruction) String() string {
	switch i.Kind {
	case MoveNode, CopyNode:
		return fmt.Sprintf("%v %s -> %s", i.Kind, i.Path, i.Dest)
	case AddProperty, SetProperty:
		return fmt.Sprintf("%v %s = %s", i.Kind, i.Target(), i.Value)
	default:
		return fmt.Sprintf("%v %s", i.Kind, i.Target())
	}
}
