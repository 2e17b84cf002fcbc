// SPDX-License-Identifier: Apache-2.0

package module

import (
	"strconv"
	"strings"
)

// VersionMatches reports whether a concrete version satisfies a version
// pattern. Supported patterns: exact ("1.2.3"), wildcard ("*" or empty),
// ">=X.Y.Z", ">X.Y.Z", "^X.Y.Z" (same major; minor/patch at least the given
// values when major is non-zero) and "~X.Y.Z" (same major.minor, patch at
// least the given value). Unparseable versions never match.
func VersionMatches(version, pattern string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == "*" {
		return true
	}

	switch {
	case strings.HasPrefix(pattern, ">="):
		v, p, ok := parsePair(version, pattern[2:])
		return ok && compareVersions(v, p) >= 0
	case strings.HasPrefix(pattern, ">"):
		v, p, ok := parsePair(version, pattern[1:])
		return ok && compareVersions(v, p) > 0
	case strings.HasPrefix(pattern, "^"):
		v, p, ok := parsePair(version, pattern[1:])
		if !ok || v[0] != p[0] {
			return false
		}
		if v[0] == 0 {
			return true
		}
		return compareVersions(v, p) >= 0
	case strings.HasPrefix(pattern, "~"):
		v, p, ok := parsePair(version, pattern[1:])
		if !ok || v[0] != p[0] || v[1] != p[1] {
			return false
		}
		return v[2] >= p[2]
	default:
		return version == pattern
	}
}

func parsePair(version, pattern string) ([3]int, [3]int, bool) {
	v, ok := parseVersion(version)
	if !ok {
		return v, v, false
	}
	p, ok := parseVersion(pattern)
	if !ok {
		return v, p, false
	}
	return v, p, true
}

// parseVersion reads up to three dotted numeric components; missing
// components default to zero.
func parseVersion(s string) ([3]int, bool) {
	var out [3]int
	s = strings.TrimSpace(s)
	if s == "" {
		return out, false
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return out, false
	}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

func compareVersions(a, b [3]int) int {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			if a[i] > b[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}
