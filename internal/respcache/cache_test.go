package respcache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMaxAgeExpiryInvariant(t *testing.T) {
	c := New(1 << 20, 128)
	req := httptest.NewRequest(http.MethodGet, "/a", nil)
	fp := Fingerprint("GET", "http", "example.com", "/a", "")

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := &Entry{
		Status:    200,
		Header:    http.Header{"Cache-Control": {"max-age=5"}},
		Body:      []byte("hello"),
		StoredAt:  start,
		ExpiresAt: start.Add(TTL(http.Header{"Cache-Control": {"max-age=5"}}, start, time.Minute)),
	}
	c.Store(req, fp, entry)

	_, ok := c.Lookup(req, fp, start.Add(4*time.Second))
	require.True(t, ok, "entry should still be fresh before max-age elapses")

	_, ok = c.Lookup(req, fp, start.Add(6*time.Second))
	require.False(t, ok, "entry should expire once max-age elapses")
	require.Equal(t, 0, c.Len(), "expired lookup should evict the stale entry")
}

func TestVaryAwareCacheHit(t *testing.T) {
	c := New(1 << 20, 128)
	fp := Fingerprint("GET", "http", "example.com", "/img", "")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	reqGzip := httptest.NewRequest(http.MethodGet, "/img", nil)
	reqGzip.Header.Set("Accept-Encoding", "gzip")
	entryGzip := &Entry{
		Status:     200,
		Header:     http.Header{"Vary": {"Accept-Encoding"}, "Content-Encoding": {"gzip"}},
		Body:       []byte("gzip-body"),
		StoredAt:   now,
		ExpiresAt:  now.Add(time.Minute),
		VaryFields: []string{"Accept-Encoding"},
	}
	c.Store(reqGzip, fp, entryGzip)

	reqPlain := httptest.NewRequest(http.MethodGet, "/img", nil)
	entryPlain := &Entry{
		Status:     200,
		Header:     http.Header{"Vary": {"Accept-Encoding"}},
		Body:       []byte("plain-body"),
		StoredAt:   now,
		ExpiresAt:  now.Add(time.Minute),
		VaryFields: []string{"Accept-Encoding"},
	}
	c.Store(reqPlain, fp, entryPlain)

	got, ok := c.Lookup(reqGzip, fp, now.Add(time.Second))
	require.True(t, ok)
	require.Equal(t, "gzip-body", string(got.Body))

	got, ok = c.Lookup(reqPlain, fp, now.Add(time.Second))
	require.True(t, ok)
	require.Equal(t, "plain-body", string(got.Body))

	require.Equal(t, 2, c.Len(), "distinct Vary variants should be stored independently")
}

func TestAdmissibleRejectsNoStoreAndNonGet(t *testing.T) {
	require.False(t, Admissible(http.MethodPost, 200, http.Header{}, http.Header{}))
	require.False(t, Admissible(http.MethodGet, 200, http.Header{"Cache-Control": {"no-store"}}, http.Header{}))
	require.False(t, Admissible(http.MethodGet, 200, http.Header{}, http.Header{}), "no Cache-Control at all carries neither public nor max-age")
}

func TestAdmissibleAuthorizationRule(t *testing.T) {
	maxAge := http.Header{"Cache-Control": {"max-age=60"}}
	public := http.Header{"Cache-Control": {"public"}}
	authed := http.Header{"Authorization": {"Bearer tok"}}

	require.True(t, Admissible(http.MethodGet, 200, maxAge, http.Header{}), "max-age without Authorization is storable")
	require.False(t, Admissible(http.MethodGet, 200, maxAge, authed), "max-age alone does not override an Authorization request header")
	require.True(t, Admissible(http.MethodGet, 200, public, authed), "explicit public overrides Authorization")
}

func TestHandlerServeStoresAndHits(t *testing.T) {
	h := &Handler{Cache: New(1 << 20, 128), DefaultTTL: time.Minute}

	calls := 0
	next := func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Cache-Control", "max-age=60")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("body"))
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w1 := httptest.NewRecorder()
	hit := h.Serve(w1, req, next)
	require.False(t, hit)
	require.Equal(t, 1, calls)

	req2 := httptest.NewRequest(http.MethodGet, "/x", nil)
	w2 := httptest.NewRecorder()
	hit = h.Serve(w2, req2, next)
	require.True(t, hit)
	require.Equal(t, 1, calls, "second request should be served from cache without invoking next")
	require.Equal(t, "HIT", w2.Header().Get(StatusHeader))
	require.Equal(t, "body", w2.Body.String())
}

func TestMaxEntriesEvictsLRU(t *testing.T) {
	c := New(1<<30, 2) // byte budget is generous; the entry-count cap is what bites
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	store := func(path string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		fp := Fingerprint("GET", "http", "example.com", path, "")
		c.Store(req, fp, &Entry{Status: 200, StoredAt: now, ExpiresAt: now.Add(time.Minute), Body: []byte("x")})
	}

	store("/a")
	store("/b")
	store("/c")

	require.Equal(t, 2, c.Len(), "cache_max_entries should cap the entry count regardless of the byte budget")
	_, ok := c.Lookup(httptest.NewRequest(http.MethodGet, "/a", nil), Fingerprint("GET", "http", "example.com", "/a", ""), now)
	require.False(t, ok, "/a was the least recently used and should have been evicted")
}

func TestHandlerUnionsConfiguredVary(t *testing.T) {
	h := &Handler{Cache: New(1<<20, 128), DefaultTTL: time.Minute, VaryHeaders: []string{"Accept-Encoding"}}

	next := func(w http.ResponseWriter, r *http.Request) {
		// upstream never sends its own Vary header for this response.
		w.Header().Set("Cache-Control", "max-age=60")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(r.Header.Get("Accept-Encoding")))
	}

	reqGzip := httptest.NewRequest(http.MethodGet, "/y", nil)
	reqGzip.Header.Set("Accept-Encoding", "gzip")
	h.Serve(httptest.NewRecorder(), reqGzip, next)

	reqDeflate := httptest.NewRequest(http.MethodGet, "/y", nil)
	reqDeflate.Header.Set("Accept-Encoding", "deflate")
	w := httptest.NewRecorder()
	hit := h.Serve(w, reqDeflate, next)

	require.False(t, hit, "cache_vary should split the cache key even without an upstream Vary header")
	require.Equal(t, "deflate", w.Body.String())
}
