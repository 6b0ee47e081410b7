package pipeline

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewriteSkipsWhenFileExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app", "existing.css"), []byte("body{}"), 0o644))

	rw := &Rewriter{
		WebRoot: dir,
		Cache:   NewFileExistsCache(0),
		Rules: []RewriteRule{
			{
				Pattern:        regexp.MustCompile(`^/app/(.*)`),
				Replacement:    "/index.html",
				RequireNotFile: true,
				Last:           true,
			},
		},
	}

	got, changed := rw.Rewrite("/app/existing.css")
	require.False(t, changed, "rule must be skipped when the target already exists as a file")
	require.Equal(t, "/app/existing.css", got)

	got, changed = rw.Rewrite("/app/profile")
	require.True(t, changed)
	require.Equal(t, "/index.html", got)
}

func TestFileExistsCacheDistinguishesDirAndFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "f.txt"), []byte("x"), 0o644))

	c := NewFileExistsCache(0)
	exists, isDir := c.Stat(dir, "/sub")
	require.True(t, exists)
	require.True(t, isDir)

	exists, isDir = c.Stat(dir, "/sub/f.txt")
	require.True(t, exists)
	require.False(t, isDir)

	exists, _ = c.Stat(dir, "/missing")
	require.False(t, exists)
}
