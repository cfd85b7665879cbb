package smbclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasMeta(t *testing.T) {
	assert.True(t, hasMeta("*.txt"))
	assert.True(t, hasMeta(`a\b?`))
	assert.True(t, hasMeta("[ab]"))
	assert.False(t, hasMeta(`a\b.txt`))
}

func TestSplitPath(t *testing.T) {
	for _, tc := range []struct{ path, dir, file string }{
		{"a", "", "a"},
		{`a\b`, "a", "b"},
		{`a\b\*.txt`, `a\b`, "*.txt"},
		{`\a`, "", "a"},
	} {
		dir, file := splitPath(tc.path)
		assert.Equal(t, tc.dir, dir, tc.path)
		assert.Equal(t, tc.file, file, tc.path)
	}
}

func TestGeneralizePattern(t *testing.T) {
	assert.Equal(t, "file?.txt", generalizePattern("file[0-9].txt"))
	assert.Equal(t, "?x?", generalizePattern("[^a]x[bc]"))
	assert.Equal(t, "*.go", generalizePattern("*.go"))
}

func TestGlob(t *testing.T) {
	srv := newTestServer(t)
	for _, p := range []string{
		`a.txt`, `b.txt`, `c.log`,
		`src\x1.go`, `src\x2.go`, `src\y.go`,
		`docs\readme.txt`,
	} {
		require.NoError(t, srv.WriteFile(testShare, p, []byte(p)))
	}

	c := connectTest(t, srv, nil)
	ctx := context.Background()

	m, err := c.Glob(ctx, "*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, m)

	m, err = c.Glob(ctx, "src/x[0-9].go")
	require.NoError(t, err)
	assert.Equal(t, []string{`src\x1.go`, `src\x2.go`}, m)

	m, err = c.Glob(ctx, `*\*.txt`)
	require.NoError(t, err)
	assert.Equal(t, []string{`docs\readme.txt`}, m)

	m, err = c.Glob(ctx, "c.log")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.log"}, m)

	m, err = c.Glob(ctx, "missing.log")
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = c.Glob(ctx, `nodir\*.go`)
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = c.Glob(ctx, "[")
	assert.ErrorIs(t, err, ErrBadPattern)
}
