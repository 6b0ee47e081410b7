package ferrontls

import (
	"net/http"
	"strings"
)

// httpChallengePrefix is the well-known path ACME HTTP-01 validation
// requests arrive on.
const httpChallengePrefix = "/.well-known/acme-challenge/"

// HTTPChallengeHandler serves ACME HTTP-01 challenge responses from the
// Store's token slot, ahead of the normal request pipeline (spec §4.6
// "HTTP-01: serve the token at /.well-known/acme-challenge/<token>
// before any other routing"). Grounded on the teacher's certmagic
// integration, which exposes the equivalent via
// certmagic.Config.HTTPChallengeHandler — reimplemented directly here
// against this package's own Store so the three-slot state stays the
// single source of truth.
type HTTPChallengeHandler struct {
	Store *Store
}

func (h *HTTPChallengeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if !strings.HasPrefix(r.URL.Path, httpChallengePrefix) {
		next.ServeHTTP(w, r)
		return
	}
	token := strings.TrimPrefix(r.URL.Path, httpChallengePrefix)
	keyAuth, ok := h.Store.HTTPToken(r.Host)
	if !ok || !strings.HasPrefix(keyAuth, token+".") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write([]byte(keyAuth))
}
