package jsop

import (
	"strings"

	"github.com/oneconcern/microkernel/pkg/model"
)

// Builder writes a diff, one operation per line
type Builder struct {
	buf strings.Builder
}

// AddNode writes the addition of a node, with its content as a JSON object
func (b *Builder) AddNode(path, content string) *Builder {
	return b.op('+', path, content)
}

// RemoveNode writes the removal of a node
func (b *Builder) RemoveNode(path string) *Builder {
	return b.op('-', path, "")
}

// SetProperty writes the assignment of a property with a JSON encoded value. A "null" value removes the property.
func (b *Builder) SetProperty(path, value string) *Builder {
	return b.op('^', path, value)
}

// MoveNode writes a move of a node
func (b *Builder) MoveNode(src, dst string) *Builder {
	return b.op('>', src, quote(dst))
}

// CopyNode writes a copy of a node
func (b *Builder) CopyNode(src, dst string) *Builder {
	return b.op('*', src, quote(dst))
}

// Len of the diff written so far
func (b *Builder) Len() int {
	return b.buf.Len()
}

func (b *Builder) String() string {
	return b.buf.String()
}

func (b *Builder) op(op byte, path, value string) *Builder {
	if b.buf.Len() > 0 {
		b.buf.WriteByte('\n')
	}
	b.buf.WriteByte(op)
	b.buf.WriteString(quote(path))
	if value != "" {
		b.buf.WriteByte(':')
		b.buf.WriteString(value)
	}
	return b
}

func quote(s string) string {
	q, _ := model.EncodeValue(s)
	return q
}
