package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaths(t *testing.T) {
	assert.True(t, IsAbsolute("/a"))
	assert.False(t, IsAbsolute("a"))
	assert.True(t, DenotesRoot("/"))

	assert.Nil(t, Names("/"))
	assert.Equal(t, []string{"a", "b"}, Names("/a/b"))

	assert.Equal(t, "/a/b", Concat("/a", "b"))
	assert.Equal(t, "/b", Concat("/", "b"))
	assert.Equal(t, "/c", Concat("/a", "/c"))
	assert.Equal(t, "b", Concat("", "b"))
	assert.Equal(t, "/a", Concat("/a", ""))

	tests := []struct {
		path, parent, name string
	}{
		{"/a", "/", "a"},
		{"/a/b", "/a", "b"},
		{"a", "", "a"},
	}
	for _, tt := range tests {
		parent, name := Split(tt.path)
		assert.Equal(t, tt.parent, parent, tt.path)
		assert.Equal(t, tt.name, name, tt.path)
	}

	assert.True(t, IsAncestor("/a", "/a/b"))
	assert.False(t, IsAncestor("/a", "/ab"))
	assert.False(t, IsAncestor("/a", "/a"))
	assert.True(t, IsAncestor("/", "/a"))
}

func TestValidatePath(t *testing.T) {
	for _, p := range []string{"/", "/a", "/a/b", "a/b"} {
		assert.NoError(t, ValidatePath(p), p)
	}
	for _, p := range []string{"", "//", "/a//b", "/a/", "/a/../b", "/."} {
		assert.Error(t, ValidatePath(p), p)
	}
}

func TestRevision(t *testing.T) {
	r := Revision(26)
	assert.Equal(t, "1a", r.String())
	assert.Equal(t, "000000000000001a", r.Key())

	parsed, err := ParseRevision("1a")
	assert.NoError(t, err)
	assert.Equal(t, r, parsed)

	_, err = ParseRevision("xyz")
	assert.Error(t, err)
}
