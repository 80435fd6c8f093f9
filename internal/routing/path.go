// internal/routing/path.go
//
// Pattern helpers.
//
// • joinPath(prefix, pattern) joins a group prefix and a route pattern with
//   exactly one separator.  A pattern of "/" maps to the prefix itself.
// • chiPattern(pattern) rewrites `:name` segments to chi's `{name}`.
// • shapeOf(pattern) blanks parameter names so "/users/:id" and
//   "/users/:userID" compare equal.
//
// Rules
// -----
// 1. Leading slash always present; trailing slash never (except "/").
// 2. Empty segments collapse.
// 3. Only whole segments starting with ":" are parameters.

package routing

import "strings"

func joinPath(prefix, pattern string) string {
	prefix = strings.Trim(prefix, "/")
	pattern = strings.Trim(pattern, "/")

	switch {
	case prefix == "" && pattern == "":
		return "/"
	case prefix == "":
		return "/" + pattern
	case pattern == "":
		return "/" + prefix
	default:
		return "/" + prefix + "/" + pattern
	}
}

func chiPattern(pattern string) string {
	segs := strings.Split(pattern, "/")
	out := segs[:0]
	for i, s := range segs {
		if s == "" && i > 0 {
			continue
		}
		if strings.HasPrefix(s, ":") && len(s) > 1 {
			s = "{" + s[1:] + "}"
		}
		out = append(out, s)
	}
	p := strings.Join(out, "/")
	if p == "" {
		return "/"
	}
	return p
}

func shapeOf(pattern string) string {
	segs := strings.Split(strings.Trim(pattern, "/"), "/")
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			segs[i] = ":"
		}
	}
	return "/" + strings.Join(segs, "/")
}
