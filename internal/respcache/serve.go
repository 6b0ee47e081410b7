package respcache

import (
	"bytes"
	"net/http"
	"time"
)

// Handler wires a Cache into an HTTP request flow: lookup before the
// downstream handler runs, and capture-then-store after, mirroring the
// two-phase module contract the rest of the pipeline uses (spec §4.6
// "cache sits around a module's normal response path").
type Handler struct {
	Cache          *Cache
	DefaultTTL     time.Duration
	MaxBufferBytes int64
	Now            func() time.Time

	// VaryHeaders names request headers whose values always split the
	// cache's secondary key, sourced from the "cache_vary" directive, unioned
	// with whatever the upstream response's own Vary header names (spec
	// §4.7).
	VaryHeaders []string
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Serve looks up a cached entry for req; on hit it writes the cached
// response directly to w and returns true. On miss, it wraps w in a
// recorder, invokes next, and stores the recorded response if
// admissible, then returns false.
func (h *Handler) Serve(w http.ResponseWriter, req *http.Request, next http.HandlerFunc) bool {
	fp := Fingerprint(req.Method, schemeOf(req), req.Host, req.URL.Path, req.URL.RawQuery)

	if !RequestBypasses(req.Header) {
		if entry, ok := h.Cache.Lookup(req, fp, h.now()); ok {
			writeEntry(w, entry)
			return true
		}
	}

	rec := &recorder{
		ResponseWriter: w,
		buf:            &bytes.Buffer{},
		limit:          h.MaxBufferBytes,
		status:         http.StatusOK,
	}
	next(rec, req)

	if rec.overLimit || !Admissible(req.Method, rec.status, rec.Header(), req.Header) {
		return false
	}

	entry := &Entry{
		Status:     rec.status,
		Header:     rec.Header().Clone(),
		Body:       append([]byte(nil), rec.buf.Bytes()...),
		StoredAt:   h.now(),
		VaryFields: UnionVaryFields(h.VaryHeaders, VaryFields(rec.Header())),
	}
	entry.ExpiresAt = entry.StoredAt.Add(TTL(rec.Header(), entry.StoredAt, h.DefaultTTL))
	h.Cache.Store(req, fp, entry)
	return false
}

func writeEntry(w http.ResponseWriter, entry *Entry) {
	dst := w.Header()
	for k, vs := range entry.Header {
		dst[k] = append([]string(nil), vs...)
	}
	dst.Set(StatusHeader, string(StatusHit))
	w.WriteHeader(entry.Status)
	w.Write(entry.Body)
}

func schemeOf(req *http.Request) string {
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

// recorder buffers a response body up to limit bytes so it can be
// stored in the cache; once the limit is exceeded it stops buffering
// (the response is still relayed to the client in full) and marks
// overLimit so Serve skips storage (spec §4.6 "responses larger than
// the buffering cap are never cached").
type recorder struct {
	http.ResponseWriter
	buf         *bytes.Buffer
	limit       int64
	written     int64
	status      int
	overLimit   bool
	wroteHeader bool
}

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.Header().Set(StatusHeader, string(StatusMiss))
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.written += int64(len(p))
	if r.limit <= 0 || r.written <= r.limit {
		r.buf.Write(p)
	} else {
		r.overLimit = true
	}
	return r.ResponseWriter.Write(p)
}
