package jsop

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

type tokenType uint8

const (
	tokEOF tokenType = iota
	tokString
	tokNumber
	tokTrue
	tokFalse
	tokNull
	tokPunct
)

type token struct {
	typ    tokenType
	text   string // raw text; for tokPunct, the character itself
	offset int
}

func (t token) is(punct byte) bool {
	return t.typ == tokPunct && len(t.text) == 1 && t.text[0] == punct
}

func (t token) describe() string {
	if t.typ == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

// SyntaxError describes a malformed diff
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Msg, e.Offset)
}

// tokenizer splits a diff into JSON tokens and operator characters.
type tokenizer struct {
	input  string
	pos    int
	peeked *token
}

func newTokenizer(input string) *tokenizer {
	return &tokenizer{input: input}
}

func (t *tokenizer) errorf(offset int, format string, args ...interface{}) error {
	return &SyntaxError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func (t *tokenizer) peek() (token, error) {
	if t.peeked == nil {
		tok, err := t.scan()
		if err != nil {
			return token{}, err
		}
		t.peeked = &tok
	}
	return *t.peeked, nil
}

func (t *tokenizer) next() (token, error) {
	tok, err := t.peek()
	t.peeked = nil
	return tok, err
}

// read consumes a token which must be the punctuation character expected
func (t *tokenizer) read(punct byte) error {
	tok, err := t.next()
	if err != nil {
		return err
	}
	if !tok.is(punct) {
		return t.errorf(tok.offset, "expected %q, got %s", punct, tok.describe())
	}
	return nil
}

// readString consumes a string token and decodes it
func (t *tokenizer) readString() (string, int, error) {
	tok, err := t.next()
	if err != nil {
		return "", 0, err
	}
	if tok.typ != tokString {
		return "", tok.offset, t.errorf(tok.offset, "expected string, got %s", tok.describe())
	}
	var s string
	if err := jsoniter.ConfigDefault.UnmarshalFromString(tok.text, &s); err != nil {
		return "", tok.offset, t.errorf(tok.offset, "invalid string: %v", err)
	}
	return s, tok.offset, nil
}

func (t *tokenizer) skipWhitespace() {
	for t.pos < len(t.input) {
		switch t.input[t.pos] {
		case ' ', '\t', '\n', '\r':
			t.pos++
		default:
			return
		}
	}
}

func (t *tokenizer) scan() (token, error) {
	t.skipWhitespace()
	start := t.pos
	if start >= len(t.input) {
		return token{typ: tokEOF, offset: start}, nil
	}

	c := t.input[start]
	switch {
	case c == '"':
		return t.scanString()
	case c == '-' && start+1 < len(t.input) && isDigit(t.input[start+1]), isDigit(c):
		return t.scanNumber()
	case isLetter(c):
		for t.pos < len(t.input) && isLetter(t.input[t.pos]) {
			t.pos++
		}
		word := t.input[start:t.pos]
		switch word {
		case "true":
			return token{typ: tokTrue, text: word, offset: start}, nil
		case "false":
			return token{typ: tokFalse, text: word, offset: start}, nil
		case "null":
			return token{typ: tokNull, text: word, offset: start}, nil
		}
		return token{}, t.errorf(start, "unexpected word %q", word)
	}

	switch c {
	case '+', '-', '^', '>', '*', ':', ',', '{', '}', '[', ']':
		t.pos++
		return token{typ: tokPunct, text: string(c), offset: start}, nil
	}
	return token{}, t.errorf(start, "unexpected character %q", c)
}

func (t *tokenizer) scanString() (token, error) {
	start := t.pos
	t.pos++ // opening quote
	for t.pos < len(t.input) {
		switch t.input[t.pos] {
		case '\\':
			t.pos += 2
		case '"':
			t.pos++
			return token{typ: tokString, text: t.input[start:t.pos], offset: start}, nil
		default:
			t.pos++
		}
	}
	return token{}, t.errorf(start, "unterminated string")
}

func (t *tokenizer) scanNumber() (token, error) {
	start := t.pos
	if t.input[t.pos] == '-' {
		t.pos++
	}
	t.digits()
	if t.pos < len(t.input) && t.input[t.pos] == '.' {
		t.pos++
		if t.digits() == 0 {
			return token{}, t.errorf(t.pos, "malformed number")
		}
	}
	if t.pos < len(t.input) && (t.input[t.pos] == 'e' || t.input[t.pos] == 'E') {
		t.pos++
		if t.pos < len(t.input) && (t.input[t.pos] == '+' || t.input[t.pos] == '-') {
			t.pos++
		}
		if t.digits() == 0 {
			return token{}, t.errorf(t.pos, "malformed number")
		}
	}
	return token{typ: tokNumber, text: t.input[start:t.pos], offset: start}, nil
}

func (t *tokenizer) digits() int {
	n := 0
	for t.pos < len(t.input) && isDigit(t.input[t.pos]) {
		t.pos++
		n++
	}
	return n
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
