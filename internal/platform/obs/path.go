// Copyright (c) 2026 Kantan Labs. All rights reserved.

package obs

import (
	"regexp"
	"strings"
)

// uuidSegment matches UUIDv4/v7 path segments.
var uuidSegment = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// CanonicalPath normalizes a request path for metric labels by collapsing
// identifier segments into ":id". This keeps label cardinality bounded.
func CanonicalPath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	for index, segment := range segments {
		if uuidSegment.MatchString(segment) || isNumeric(segment) {
			segments[index] = ":id"
		}
	}

	return "/" + strings.Join(segments, "/")
}

// isNumeric reports whether the segment consists only of ASCII digits.
func isNumeric(segment string) bool {
	if segment == "" {
		return false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
