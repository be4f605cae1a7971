package jsop

import (
	"testing"

	"github.com/oneconcern/microkernel/pkg/errors"
	"github.com/oneconcern/microkernel/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		path string
		diff string
		want []Instruction
	}{
		{
			name: "add node with content",
			path: "/",
			diff: `+"a":{"x":1,"b":{"y":"z"}}`,
			want: []Instruction{
				{Kind: AddNode, Path: "/", Name: "a"},
				{Kind: AddProperty, Path: "/a", Name: "x", Value: "1"},
				{Kind: AddNode, Path: "/a", Name: "b"},
				{Kind: AddProperty, Path: "/a/b", Name: "y", Value: `"z"`},
			},
		},
		{
			name: "add property",
			path: "/a",
			diff: `+"b/p" : [1, -2.5e3, "s", true]`,
			want: []Instruction{
				{Kind: AddProperty, Path: "/a/b", Name: "p", Value: `[1,-2.5e3,"s",true]`},
			},
		},
		{
			name: "remove node then set property",
			path: "",
			diff: "-\"/a\"\n^\"/b/x\" : null\n^\"/b/y\":-1",
			want: []Instruction{
				{Kind: RemoveNode, Path: "/", Name: "a"},
				{Kind: SetProperty, Path: "/b", Name: "x", Value: "null"},
				{Kind: SetProperty, Path: "/b", Name: "y", Value: "-1"},
			},
		},
		{
			name: "move and copy",
			path: "/",
			diff: `>"a" : "b" *"c":"/d/e"`,
			want: []Instruction{
				{Kind: MoveNode, Path: "/a", Dest: "/b"},
				{Kind: CopyNode, Path: "/c", Dest: "/d/e"},
			},
		},
		{
			name: "escaped names",
			path: "/",
			diff: `+"a\"b":{"é":"<tag>"}`,
			want: []Instruction{
				{Kind: AddNode, Path: "/", Name: `a"b`},
				{Kind: AddProperty, Path: `/a"b`, Name: "é", Value: `"<tag>"`},
			},
		},
		{
			name: "empty",
			path: "/",
			diff: "  \n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.path, tt.diff)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		diff   string
		offset int
	}{
		{name: "unknown operation", path: "/", diff: `?"a"`, offset: 0},
		{name: "relative path without base", path: "", diff: `-"a"`, offset: 1},
		{name: "missing colon", path: "/", diff: `+"a" {}`, offset: 5},
		{name: "unterminated object", path: "/", diff: `+"a":{"x":1`, offset: 11},
		{name: "unterminated string", path: "/", diff: `-"a`, offset: 1},
		{name: "bad literal", path: "/", diff: `^"a/x":nope`, offset: 7},
		{name: "nested object in array", path: "/", diff: `^"a/x":[{}]`, offset: 8},
		{name: "remove root", path: "/", diff: `-"/"`, offset: 1},
		{name: "empty name", path: "/", diff: `-"a//b"`, offset: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.path, tt.diff)
			require.Error(t, err)
			assert.True(t, errors.Is(err, status.ErrSyntax))

			var syntaxErr *SyntaxError
			require.True(t, errors.As(err, &syntaxErr))
			assert.Equal(t, tt.offset, syntaxErr.Offset, syntaxErr.Msg)
		})
	}
}

func TestInstruction(t *testing.T) {
	i := Instruction{Kind: SetProperty, Path: "/a", Name: "x", Value: "null"}
	assert.True(t, i.IsNull())
	assert.Equal(t, "/a/x", i.Target())
	v, err := i.TypedValue()
	require.NoError(t, err)
	assert.Nil(t, v)

	m := Instruction{Kind: MoveNode, Path: "/a", Dest: "/b"}
	assert.Equal(t, "/b", m.Target())
	assert.Equal(t, "MoveNode /a -> /b", m.String())
}

func TestBuilder(t *testing.T) {
	var b Builder
	b.AddNode("/a", `{"x":1}`).
		SetProperty("/b/y", "null").
		RemoveNode("/c").
		MoveNode("/d", "/e").
		CopyNode("/f", "/g")

	assert.Equal(t, "+\"/a\":{\"x\":1}\n^\"/b/y\":null\n-\"/c\"\n>\"/d\":\"/e\"\n*\"/f\":\"/g\"", b.String())

	parsed, err := Parse("", b.String())
	require.NoError(t, err)
	assert.Len(t, parsed, 6)
}
