package respcache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CacheStatus is the value written to the X-Ferron-Cache response
// header (spec §4.6 "cache status reporting").
type CacheStatus string

const (
	StatusHit    CacheStatus = "HIT"
	StatusMiss   CacheStatus = "MISS"
	StatusBypass CacheStatus = "BYPASS"
	StatusStale  CacheStatus = "STALE"
)

const StatusHeader = "X-Ferron-Cache"

// Admissible reports whether an upstream response is eligible to be
// stored at all (spec §4.7 admission rules): only GET/HEAD responses
// with a cacheable status are considered; its Cache-Control must then
// allow storage — not no-store, not private, and either explicitly
// public or, lacking an Authorization header on the request, carrying
// max-age or s-maxage.
func Admissible(method string, status int, header, reqHeader http.Header) bool {
	if method != http.MethodGet && method != http.MethodHead {
		return false
	}
	switch status {
	case http.StatusOK, http.StatusNonAuthoritativeInfo, http.StatusNoContent,
		http.StatusPartialContent, http.StatusMultipleChoices, http.StatusMovedPermanently,
		http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusGone,
		http.StatusRequestURITooLong:
		// cacheable-by-default statuses per RFC 7231 §6.1, mirrored by spec §4.6.
	default:
		return false
	}
	cc := parseCacheControl(header.Get("Cache-Control"))
	if cc.noStore || cc.private {
		return false
	}
	if cc.public {
		return true
	}
	if reqHeader.Get("Authorization") != "" {
		return false
	}
	return cc.maxAge >= 0 || cc.sMaxAge >= 0
}

// TTL computes the entry lifetime from Cache-Control max-age/s-maxage
// (s-maxage taking priority), falling back to Expires, then to
// defaultTTL when neither header is present (spec §4.6 "freshness
// lifetime").
func TTL(header http.Header, now time.Time, defaultTTL time.Duration) time.Duration {
	cc := parseCacheControl(header.Get("Cache-Control"))
	if cc.sMaxAge >= 0 {
		return time.Duration(cc.sMaxAge) * time.Second
	}
	if cc.maxAge >= 0 {
		return time.Duration(cc.maxAge) * time.Second
	}
	if exp := header.Get("Expires"); exp != "" {
		if t, err := http.ParseTime(exp); err == nil {
			if d := t.Sub(now); d > 0 {
				return d
			}
			return 0
		}
	}
	return defaultTTL
}

type cacheControl struct {
	noStore bool
	private bool
	public  bool
	maxAge  int
	sMaxAge int
}

func parseCacheControl(v string) cacheControl {
	cc := cacheControl{maxAge: -1, sMaxAge: -1}
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, _ := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		val = strings.Trim(strings.TrimSpace(val), `"`)
		switch name {
		case "no-store":
			cc.noStore = true
		case "private":
			cc.private = true
		case "public":
			cc.public = true
		case "max-age":
			if n, err := strconv.Atoi(val); err == nil {
				cc.maxAge = n
			}
		case "s-maxage":
			if n, err := strconv.Atoi(val); err == nil {
				cc.sMaxAge = n
			}
		}
	}
	return cc
}

// RequestBypasses reports whether the incoming request itself opts out
// of serving from cache (Cache-Control: no-cache on the request side).
func RequestBypasses(header http.Header) bool {
	cc := parseCacheControl(header.Get("Cache-Control"))
	return cc.noStore || strings.Contains(strings.ToLower(header.Get("Cache-Control")), "no-cache") || header.Get("Pragma") == "no-cache"
}

// VaryFields extracts the header names a cacheable response's Vary
// header names, used to key stored variants (spec §4.6 "Vary-derived
// secondary key").
func VaryFields(header http.Header) []string {
	raw := header.Get("Vary")
	if raw == "" || raw == "*" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// UnionVaryFields merges the configured "cache_vary" header list with a
// response's own Vary header, deduplicated case-insensitively (spec
// §4.7 "newline-joined pairs for every configured Vary header plus
// every header listed in the response's Vary").
func UnionVaryFields(configured []string, responseVary []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range configured {
		key := strings.ToLower(f)
		if f == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	for _, f := range responseVary {
		key := strings.ToLower(f)
		if f == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}
