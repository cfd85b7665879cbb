package smbclient

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrBadPattern indicates a pattern was malformed.
var ErrBadPattern = errors.New("syntax error in pattern")

// Glob returns the share paths matching pattern, in the syntax of
// filepath.Match with either separator. Unreadable directories are
// skipped.
func (c *Client) Glob(ctx context.Context, pattern string) (matches []string, err error) {
	ctx, end := c.startSpan(ctx, "glob")
	defer end(&err)

	return c.glob(ctx, normPath(pattern))
}

func (c *Client) glob(ctx context.Context, pattern string) (matches []string, err error) {
	if _, err := filepath.Match(strings.ReplaceAll(pattern, `\`, `/`), ""); err != nil {
		return nil, ErrBadPattern
	}

	if !hasMeta(pattern) {
		if _, err := c.FileStat(ctx, pattern); err != nil {
			return nil, nil
		}
		return []string{pattern}, nil
	}

	dir, file := splitPath(pattern)

	if !hasMeta(dir) {
		return c.globDir(ctx, dir, file, nil)
	}

	// Prevent infinite recursion.
	if dir == pattern {
		return nil, ErrBadPattern
	}

	m, err := c.glob(ctx, dir)
	if err != nil {
		return nil, err
	}
	for _, d := range m {
		matches, err = c.globDir(ctx, d, file, matches)
		if err != nil {
			return nil, err
		}
	}
	return matches, nil
}

func splitPath(path string) (dir, file string) {
	i := len(path) - 1
	for i >= 0 && !IsPathSeparator(path[i]) {
		i--
	}
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

var characterRangePattern = regexp.MustCompile(`\[^?[^\[\]]+\]`)

// generalizePattern turns character ranges, which the server doesn't know,
// into "?".
func generalizePattern(pattern string) string {
	return characterRangePattern.ReplaceAllLiteralString(pattern, "?")
}

// globDir appends the entries of dir matching pattern to matches, sorted.
func (c *Client) globDir(ctx context.Context, dir, pattern string, matches []string) ([]string, error) {
	files, err := c.ListDirectory(ctx, dir, generalizePattern(pattern))
	if err != nil {
		if IsDisconnected(err) {
			return nil, err
		}
		return matches, nil
	}

	var found []string
	for _, f := range files {
		name := f.Name()
		if name == "." || name == ".." {
			continue
		}
		ok, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if ok {
			found = append(found, join(dir, name))
		}
	}

	sort.Strings(found)

	return append(matches, found...), nil
}

// hasMeta reports whether path contains any of the magic characters
// recognized by Match.
func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}
