// Package respcache implements the Response Cache (spec §4.6): a
// bounded, TTL-aware, Vary-aware cache of upstream/module responses
// keyed by request fingerprint. Grounded on the teacher's
// caddyhttp/staticfiles file-metadata cache pattern (a mutex-guarded map
// with an eviction sweep), generalized to an LRU with an explicit
// container/list ring per spec §8's "bounded memory" invariant.
package respcache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Entry is one cached response (spec §3 "CacheEntry").
type Entry struct {
	Status     int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
	ExpiresAt  time.Time
	VaryFields []string
}

func (e *Entry) expired(now time.Time) bool { return now.After(e.ExpiresAt) }

type cacheKey struct {
	fingerprint string
	varyHash    string
}

type node struct {
	key   cacheKey
	entry *Entry
	size  int64
}

// DefaultMaxEntries is the entry-count eviction bound applied when a
// Cache is built with maxEntries <= 0 (spec §4.7 "cache_max_entries,
// default 128").
const DefaultMaxEntries = 128

// Cache is a bounded in-memory LRU keyed by (fingerprint, Vary-derived
// hash), with per-entry TTL expiry (spec §4.6). Two independent caps
// bound its size: a total byte budget and an entry count (spec §4.7).
type Cache struct {
	mu         sync.Mutex
	maxBytes   int64
	maxEntries int
	curBytes   int64
	ll         *list.List
	items      map[cacheKey]*list.Element
	byFp       map[string][]*list.Element // all Vary-variants sharing a fingerprint
}

// New creates a Cache bounded at maxBytes total entry-body size and
// maxEntries distinct stored variants (cache_max_entries); maxEntries
// <= 0 applies DefaultMaxEntries.
func New(maxBytes int64, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		maxBytes:   maxBytes,
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      map[cacheKey]*list.Element{},
		byFp:       map[string][]*list.Element{},
	}
}

// Fingerprint computes the primary cache key of spec §4.6: "METHOD
// SCHEME://HOST/PATH?QUERY".
func Fingerprint(method, scheme, host, path, rawQuery string) string {
	u := fmt.Sprintf("%s://%s%s", scheme, host, path)
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return strings.ToUpper(method) + " " + u
}

// varyHash derives the secondary key from the request headers named by
// a stored entry's Vary list, so distinct representations of the same
// fingerprint (e.g. by Accept-Encoding) are cached independently.
func varyHash(req *http.Request, varyFields []string) string {
	if len(varyFields) == 0 {
		return ""
	}
	fields := append([]string(nil), varyFields...)
	sort.Strings(fields)
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(strings.ToLower(f)))
		h.Write([]byte{0})
		h.Write([]byte(req.Header.Get(f)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the cached entry for req under fingerprint, if any
// stored variant's Vary fields match the request and it has not
// expired. It returns (nil, false) on miss, whether from absence or
// expiry (an expired entry is evicted as a side effect).
func (c *Cache) Lookup(req *http.Request, fingerprint string, now time.Time) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, el := range c.byFp[fingerprint] {
		n := el.Value.(*node)
		if n.key.varyHash != varyHash(req, n.entry.VaryFields) {
			continue
		}
		if n.entry.expired(now) {
			c.removeLocked(el)
			return nil, false
		}
		c.ll.MoveToFront(el)
		return n.entry, true
	}
	return nil, false
}

// Store admits entry into the cache under fingerprint, evicting the
// least-recently-used entries as needed to respect the byte budget
// (spec §4.6 "admission and eviction").
func (c *Cache) Store(req *http.Request, fingerprint string, entry *Entry) {
	size := int64(len(entry.Body))
	if c.maxBytes > 0 && size > c.maxBytes {
		return // single entry larger than the whole budget is never admitted
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{fingerprint: fingerprint, varyHash: varyHash(req, entry.VaryFields)}
	if existing, ok := c.items[key]; ok {
		c.removeLocked(existing)
	}

	n := &node{key: key, entry: entry, size: size}
	el := c.ll.PushFront(n)
	c.items[key] = el
	c.byFp[fingerprint] = append(c.byFp[fingerprint], el)
	c.curBytes += size

	for c.maxBytes > 0 && c.curBytes > c.maxBytes && c.ll.Len() > 0 {
		back := c.ll.Back()
		if back == el {
			break
		}
		c.removeLocked(back)
	}

	for c.ll.Len() > c.maxEntries {
		back := c.ll.Back()
		if back == el {
			break
		}
		c.removeLocked(back)
	}
}

// Purge evicts every cached variant for fingerprint (spec §4.6 "manual
// purge / invalidation on configuration reload").
func (c *Cache) Purge(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, el := range c.byFp[fingerprint] {
		c.removeLocked(el)
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	n := el.Value.(*node)
	c.ll.Remove(el)
	delete(c.items, n.key)
	c.curBytes -= n.size

	variants := c.byFp[n.key.fingerprint]
	for i, v := range variants {
		if v == el {
			variants = append(variants[:i], variants[i+1:]...)
			break
		}
	}
	if len(variants) == 0 {
		delete(c.byFp, n.key.fingerprint)
	} else {
		c.byFp[n.key.fingerprint] = variants
	}
}

// Size reports current occupied bytes, human-readable.
func (c *Cache) Size() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return humanize.Bytes(uint64(c.curBytes))
}

// Len reports the number of distinct cached variants, across all
// fingerprints.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
