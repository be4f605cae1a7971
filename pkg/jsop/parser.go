package jsop

import (
	"strings"

	"github.com/oneconcern/microkernel/pkg/model"
	"github.com/oneconcern/microkernel/pkg/status"
)

// Parse a diff into instructions, in input order.
//
// Paths in the diff are resolved against path. When path is empty, all
// paths in the diff must be absolute.
//
// Errors match status.ErrSyntax and wrap a *SyntaxError.
func Parse(path, diff string) ([]Instruction, error) {
	p := &parser{
		base: path,
		tok:  newTokenizer(diff),
	}
	instructions, err := p.parse()
	if err != nil {
		return nil, status.ErrSyntax.Wrap(err)
	}
	return instructions, nil
}

type parser struct {
	base         string
	tok          *tokenizer
	instructions []Instruction
}

func (p *parser) emit(i Instruction) {
	p.instructions = append(p.instructions, i)
}

func (p *parser) parse() ([]Instruction, error) {
	for {
		op, err := p.tok.next()
		if err != nil {
			return nil, err
		}
		if op.typ == tokEOF {
			return p.instructions, nil
		}
		if op.typ != tokPunct {
			return nil, p.tok.errorf(op.offset, "expected operation, got %s", op.describe())
		}

		switch op.text[0] {
		case '+':
			err = p.parseAdd()
		case '-':
			err = p.parseRemove()
		case '^':
			err = p.parseSet()
		case '>':
			err = p.parseMoveOrCopy(MoveNode)
		case '*':
			err = p.parseMoveOrCopy(CopyNode)
		default:
			err = p.tok.errorf(op.offset, "unknown operation %s", op.describe())
		}
		if err != nil {
			return nil, err
		}
	}
}

// readPath reads a path string and resolves it to an absolute path
func (p *parser) readPath() (string, int, error) {
	rel, offset, err := p.tok.readString()
	if err != nil {
		return "", offset, err
	}
	pth := model.Concat(p.base, rel)
	if !model.IsAbsolute(pth) {
		return "", offset, p.tok.errorf(offset, "path %q is not absolute", pth)
	}
	pth = trimTrailingSlash(pth)
	if err := model.ValidatePath(pth); err != nil {
		return "", offset, p.tok.errorf(offset, "%v", err)
	}
	return pth, offset, nil
}

// readItemPath reads the path of a non-root node or property, split into parent path and name
func (p *parser) readItemPath() (string, string, error) {
	pth, offset, err := p.readPath()
	if err != nil {
		return "", "", err
	}
	if model.DenotesRoot(pth) {
		return "", "", p.tok.errorf(offset, "the root node cannot be the target of this operation")
	}
	parent, name := model.Split(pth)
	return parent, name, nil
}

func (p *parser) parseAdd() error {
	parent, name, err := p.readItemPath()
	if err != nil {
		return err
	}
	if err = p.tok.read(':'); err != nil {
		return err
	}
	next, err := p.tok.peek()
	if err != nil {
		return err
	}
	if next.is('{') {
		p.emit(Instruction{Kind: AddNode, Path: parent, Name: name})
		return p.parseObject(model.Concat(parent, name))
	}
	value, err := p.parseValue()
	if err != nil {
		return err
	}
	p.emit(Instruction{Kind: AddProperty, Path: parent, Name: name, Value: value})
	return nil
}

func (p *parser) parseRemove() error {
	parent, name, err := p.readItemPath()
	if err != nil {
		return err
	}
	p.emit(Instruction{Kind: RemoveNode, Path: parent, Name: name})
	return nil
}

func (p *parser) parseSet() error {
	parent, name, err := p.readItemPath()
	if err != nil {
		return err
	}
	if err = p.tok.read(':'); err != nil {
		return err
	}
	value, err := p.parseValue()
	if err != nil {
		return err
	}
	p.emit(Instruction{Kind: SetProperty, Path: parent, Name: name, Value: value})
	return nil
}

func (p *parser) parseMoveOrCopy(kind Kind) error {
	src, offset, err := p.readPath()
	if err != nil {
		return err
	}
	if err = p.tok.read(':'); err != nil {
		return err
	}
	dst, _, err := p.readPath()
	if err != nil {
		return err
	}
	if model.DenotesRoot(src) || model.DenotesRoot(dst) {
		return p.tok.errorf(offset, "cannot %s the root node", strings.ToLower(strings.TrimSuffix(kind.String(), "Node")))
	}
	p.emit(Instruction{Kind: kind, Path: src, Dest: dst})
	return nil
}

// parseObject reads the content of an added node at some path:
// nested objects are added as child nodes, other values as properties.
func (p *parser) parseObject(pth string) error {
	if err := p.tok.read('{'); err != nil {
		return err
	}
	next, err := p.tok.peek()
	if err != nil {
		return err
	}
	if next.is('}') {
		_, err = p.tok.next()
		return err
	}
	for {
		name, offset, err := p.tok.readString()
		if err != nil {
			return err
		}
		if err = model.ValidateName(name); err != nil || strings.Contains(name, "/") {
			return p.tok.errorf(offset, "illegal name %q", name)
		}
		if err = p.tok.read(':'); err != nil {
			return err
		}
		if next, err = p.tok.peek(); err != nil {
			return err
		}
		if next.is('{') {
			p.emit(Instruction{Kind: AddNode, Path: pth, Name: name})
			if err = p.parseObject(model.Concat(pth, name)); err != nil {
				return err
			}
		} else {
			value, err := p.parseValue()
			if err != nil {
				return err
			}
			p.emit(Instruction{Kind: AddProperty, Path: pth, Name: name, Value: value})
		}

		sep, err := p.tok.next()
		if err != nil {
			return err
		}
		switch {
		case sep.is('}'):
			return nil
		case sep.is(','):
		default:
			return p.tok.errorf(sep.offset, "expected ',' or '}', got %s", sep.describe())
		}
	}
}

// parseValue reads a property value and yields its canonical JSON encoding
func (p *parser) parseValue() (string, error) {
	tok, err := p.tok.peek()
	if err != nil {
		return "", err
	}
	if tok.is('[') {
		return p.parseArray()
	}
	return p.parseScalar()
}

func (p *parser) parseScalar() (string, error) {
	tok, err := p.tok.peek()
	if err != nil {
		return "", err
	}
	switch tok.typ {
	case tokString:
		s, _, err := p.tok.readString()
		if err != nil {
			return "", err
		}
		return model.EncodeValue(s)
	case tokNumber, tokTrue, tokFalse, tokNull:
		_, err = p.tok.next()
		return tok.text, err
	default:
		return "", p.tok.errorf(tok.offset, "expected value, got %s", tok.describe())
	}
}

func (p *parser) parseArray() (string, error) {
	if err := p.tok.read('['); err != nil {
		return "", err
	}
	var elems []string
	next, err := p.tok.peek()
	if err != nil {
		return "", err
	}
	if next.is(']') {
		_, err = p.tok.next()
		return "[]", err
	}
	for {
		elem, err := p.parseScalar()
		if err != nil {
			return "", err
		}
		elems = append(elems, elem)
		sep, err := p.tok.next()
		if err != nil {
			return "", err
		}
		switch {
		case sep.is(']'):
			return "[" + strings.Join(elems, ",") + "]", nil
		case sep.is(','):
		default:
			return "", p.tok.errorf(sep.offset, "expected ',' or ']', got %s", sep.describe())
		}
	}
}

func trimTrailingSlash(pth string) string {
	for len(pth) > 1 && strings.HasSuffix(pth, "/") {
		pth = pth[:len(pth)-1]
	}
	return pth
}
