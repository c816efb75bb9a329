// Package normalize cleans URL paths so literal rule paths can be checked
// for a form that a request could actually carry.
package normalize

import "strings"

// NormalizePath resolves "." and ".." segments and collapses repeated
// slashes. A leading slash and a trailing slash are kept. ".." never climbs
// above the root.
func NormalizePath(path string) string {
	if path == "" {
		return "/"
	}

	segments := make([]string, 0, strings.Count(path, "/")+1)
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
		case "..":
			if n := len(segments); n > 0 {
				segments = segments[:n-1]
			}
		default:
			segments = append(segments, seg)
		}
	}

	out := strings.Join(segments, "/")
	if strings.HasPrefix(path, "/") {
		out = "/" + out
	}
	if out == "" || out == "/" {
		return "/"
	}
	if strings.HasSuffix(path, "/") {
		out += "/"
	}
	return out
}

// IsNormal reports whether path is already in the form NormalizePath returns.
func IsNormal(path string) bool {
	return path != "" && NormalizePath(path) == path
}
