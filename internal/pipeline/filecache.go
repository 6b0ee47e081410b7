package pipeline

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileExistsCache is a bounded-TTL memoization of filesystem existence
// checks, consulted by Rewriter so the `is_not_file`/`is_not_directory`
// rule requirements don't stat the webroot on every rewrite evaluation
// (spec §4.2 "backed by pipeline.FileExistsCache"). Grounded on the
// teacher's filesystem.go metadata cache, combined with a simple TTL
// akin to certmagic's own cache-lock idiom.
type FileExistsCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	stat  func(string) (os.FileInfo, error)
	cache map[string]cacheEntry
}

type cacheEntry struct {
	isDir   bool
	exists  bool
	expires time.Time
}

func NewFileExistsCache(ttl time.Duration) *FileExistsCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &FileExistsCache{
		ttl:   ttl,
		now:   time.Now,
		stat:  os.Stat,
		cache: map[string]cacheEntry{},
	}
}

// Stat reports whether webRoot-joined path exists and, if so, whether
// it is a directory.
func (c *FileExistsCache) Stat(webRoot, reqPath string) (exists, isDir bool) {
	full := filepath.Join(webRoot, filepath.Clean("/"+reqPath))

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.cache[full]; ok && now.Before(e.expires) {
		return e.exists, e.isDir
	}

	info, err := c.stat(full)
	e := cacheEntry{expires: now.Add(c.ttl)}
	if err == nil {
		e.exists = true
		e.isDir = info.IsDir()
	}
	c.cache[full] = e
	return e.exists, e.isDir
}
