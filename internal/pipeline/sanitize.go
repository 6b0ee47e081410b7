package pipeline

import (
	"net/url"
	"strings"
)

// SanitizeURL normalizes a raw request path into a safe, canonical
// form (spec §8 invariant: "for all URL-sanitize inputs S,
// sanitize(sanitize(S)) == sanitize(S)"): null bytes are stripped,
// `../`/`./` segments are collapsed, the result is rooted at `/` unless
// the input is `*` or empty, and percent-encoding is normalized by a
// decode-then-re-encode pass so previously-encoded safe characters
// don't re-accumulate extra encoding on a second pass. Grounded on the
// teacher's path-cleaning helper in caddyhttp's URL-rewrite matcher,
// generalized to the spec's explicit idempotence requirement.
func SanitizeURL(raw string) string {
	if raw == "" || raw == "*" {
		return raw
	}

	s := strings.ReplaceAll(raw, "\x00", "")

	path, query, hasQuery := strings.Cut(s, "?")

	decoded, err := url.PathUnescape(path)
	if err == nil {
		path = decoded
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = collapseDotSegments(path)
	path = encodePath(path)

	if hasQuery {
		return path + "?" + query
	}
	return path
}

// collapseDotSegments removes "." and ".." segments the way RFC 3986
// §5.2.4 specifies, never letting ".." escape above the root.
func collapseDotSegments(path string) string {
	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case ".":
			continue
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	joined := strings.Join(out, "/")
	if joined == "" {
		return "/"
	}
	return joined
}

// encodePath re-escapes a decoded path segment-by-segment, so running
// encodePath on an already-encoded-and-decoded path is a no-op — the
// property the idempotence invariant needs.
func encodePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = (&url.URL{Path: seg}).EscapedPath()
	}
	return strings.Join(segments, "/")
}
