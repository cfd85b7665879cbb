package smbclient

import (
	"strings"
)

const PathSeparator = '\\'

func IsPathSeparator(c uint8) bool {
	return c == '\\'
}

// normPath converts a share-relative path to the form sent on the wire:
// backslash separated, no leading or trailing separator, no "." elements.
// The share root is "".
func normPath(path string) string {
	path = strings.ReplaceAll(path, `/`, `\`)

	elems := strings.Split(path, `\`)
	out := elems[:0]
	for _, e := range elems {
		if e == "" || e == "." {
			continue
		}
		out = append(out, e)
	}
	return strings.Join(out, `\`)
}

// isInvalidPath rejects names the server would refuse as OBJECT_NAME_INVALID
// or that escape the share.
func isInvalidPath(path string) bool {
	for _, e := range strings.Split(path, `\`) {
		if e == ".." {
			return true
		}
	}
	return strings.ContainsAny(path, "\x00:<>\"|")
}

func join(elem ...string) string {
	var parts []string
	for _, e := range elem {
		if e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, string(PathSeparator))
}

func base(path string) string {
	j := len(path)
	for j > 0 && IsPathSeparator(path[j-1]) {
		j--
	}

	if j == 0 {
		return ""
	}

	i := j - 1
	for i > 0 && !IsPathSeparator(path[i-1]) {
		i--
	}

	return path[i:j]
}

func dir(path string) string {
	i := len(path)
	for i > 0 && !IsPathSeparator(path[i-1]) {
		i--
	}
	for i > 0 && IsPathSeparator(path[i-1]) {
		i--
	}
	return path[:i]
}

// sharePath builds the UNC path of a share. name may be a bare share name,
// a \\host\share or //host/share path.
func sharePath(host, name string) string {
	name = strings.ReplaceAll(name, `/`, `\`)
	if strings.HasPrefix(name, `\\`) {
		return strings.TrimRight(name, `\`)
	}
	return `\\` + host + `\` + strings.Trim(name, `\`)
}

// shareName returns the last element of a UNC path.
func shareName(unc string) string {
	return base(unc)
}
