package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeURLIdempotence(t *testing.T) {
	inputs := []string{
		"/a/b/../c",
		"/a//b/./c",
		"/%2e%2e/etc/passwd",
		"a/b\x00/c",
		"*",
		"",
		"/hello world/",
		"/already%20encoded",
	}
	for _, in := range inputs {
		once := SanitizeURL(in)
		twice := SanitizeURL(once)
		require.Equal(t, once, twice, "sanitize(sanitize(%q)) must equal sanitize(%q)", in, in)
	}
}

func TestSanitizeURLCollapsesDotDot(t *testing.T) {
	require.Equal(t, "/c", SanitizeURL("/a/b/../../c"))
	require.Equal(t, "/", SanitizeURL("/../../.."))
}

func TestSanitizeURLRoots(t *testing.T) {
	require.Equal(t, "/foo", SanitizeURL("foo"))
	require.Equal(t, "*", SanitizeURL("*"))
	require.Equal(t, "", SanitizeURL(""))
}

func TestSanitizeURLStripsNullBytes(t *testing.T) {
	require.NotContains(t, SanitizeURL("/a\x00b"), "\x00")
}
