package smbclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testBase = []struct {
	Path string
	Base string
}{
	{"", ""},
	{`\`, ""},
	{`\foo`, "foo"},
	{`\foo\bar`, "bar"},
	{`foo\bar`, "bar"},
	{`foo\bar\`, "bar"},
	{`foo\bar\\`, "bar"},
	{`foo`, "foo"},
}

func TestBase(t *testing.T) {
	for _, c := range testBase {
		if base(c.Path) != c.Base {
			t.Errorf("path: %v, expected: %v, got: %v", c.Path, c.Base, base(c.Path))
		}
	}
}

var testDir = []struct {
	Path string
	Dir  string
}{
	{"", ""},
	{`\`, ""},
	{`\foo`, ""},
	{`\foo\bar`, `\foo`},
	{`foo\bar`, "foo"},
	{`foo\\bar`, "foo"},
	{`foo`, ""},
}

func TestDir(t *testing.T) {
	for _, c := range testDir {
		if dir(c.Path) != c.Dir {
			t.Errorf("path: %v, expected: %v, got: %v", c.Path, c.Dir, dir(c.Path))
		}
	}
}

func TestNormPath(t *testing.T) {
	for in, want := range map[string]string{
		"":                 "",
		"/":                "",
		".":                "",
		`\`:                "",
		"a/b/c":            `a\b\c`,
		`/a//b/./c/`:       `a\b\c`,
		`\\a\b`:            `a\b`,
		`dir\file.txt`:     `dir\file.txt`,
		"./dir/./file.txt": `dir\file.txt`,
	} {
		assert.Equal(t, want, normPath(in), in)
	}
}

func TestIsInvalidPath(t *testing.T) {
	assert.False(t, isInvalidPath(""))
	assert.False(t, isInvalidPath(`a\b.txt`))
	assert.False(t, isInvalidPath(`a\..b`))
	assert.True(t, isInvalidPath(`..`))
	assert.True(t, isInvalidPath(`a\..\b`))
	assert.True(t, isInvalidPath(`a:b`))
	assert.True(t, isInvalidPath(`a|b`))
	assert.True(t, isInvalidPath("a\x00"))
}

func TestSharePath(t *testing.T) {
	assert.Equal(t, `\\host\share`, sharePath("host", "share"))
	assert.Equal(t, `\\host\share`, sharePath("host", `\share\`))
	assert.Equal(t, `\\other\share`, sharePath("host", `\\other\share\`))
	assert.Equal(t, `\\other\share`, sharePath("host", "//other/share"))
	assert.Equal(t, `\\host\IPC$`, sharePath("host", "IPC$"))

	assert.Equal(t, "share", shareName(`\\host\share`))
	assert.Equal(t, "", shareName(""))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, `a\b`, join("a", "b"))
	assert.Equal(t, "b", join("", "b"))
	assert.Equal(t, "a", join("a", ""))
}
