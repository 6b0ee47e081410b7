package main

import (
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ferronweb/ferron-core/internal/ferronconfig"
	"github.com/ferronweb/ferron-core/internal/ferronlog"
	"github.com/ferronweb/ferron-core/internal/ferrontls"
	"github.com/ferronweb/ferron-core/internal/metrics"
	"github.com/ferronweb/ferron-core/internal/pipeline"
	"github.com/ferronweb/ferron-core/internal/respcache"
)

const metricsPath = "/metrics"

// serverHandler is the net/http entry point fed by the channel
// listener: it derives SocketData from the connection, sanitizes the
// URL path (no rewrite rules are applied on this path), looks up the
// matching configuration, and runs the
// module chain (spec §4.2), optionally wrapped by the response cache
// (spec §4.7) and fronted by the ACME HTTP-01 challenge path (spec
// §4.6). Grounded on the teacher's admin-free HTTP entry in
// cmd/commandfuncs.go's server construction, collapsed here to a
// single http.Handler since this core has no admin API.
type serverHandler struct {
	dispatcher *pipeline.Dispatcher
	cache      *respcache.Cache
	challenge  *ferrontls.HTTPChallengeHandler
	log        *ferronlog.Logger
}

func newServerHandler(dispatcher *pipeline.Dispatcher, cache *respcache.Cache, tlsMgr *ferrontls.Manager, log *ferronlog.Logger) http.Handler {
	h := &serverHandler{dispatcher: dispatcher, cache: cache, log: log}
	if tlsMgr != nil {
		h.challenge = &ferrontls.HTTPChallengeHandler{Store: tlsMgr.ChallengeStore()}
	}
	return h
}

func (h *serverHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == metricsPath {
		promhttp.Handler().ServeHTTP(w, r)
		return
	}
	if h.challenge != nil {
		h.challenge.ServeHTTP(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.serveRequest(w, r)
		}))
		return
	}
	h.serveRequest(w, r)
}

func (h *serverHandler) serveRequest(w http.ResponseWriter, r *http.Request) {
	sanitized := pipeline.SanitizeURL(r.URL.Path)
	r.URL.Path = sanitized
	sock := socketDataFor(r)
	cfg := h.dispatcher.Index.Lookup(r, sock)

	if h.cache != nil && cfg != nil {
		rc := &respcache.Handler{
			Cache:          h.cache,
			MaxBufferBytes: 4 << 20,
			VaryHeaders:    cacheVaryProperty(cfg),
		}
		rc.Serve(w, r, func(w http.ResponseWriter, r *http.Request) {
			h.dispatchAndWrite(w, r, sock, cfg)
		})
		return
	}
	h.dispatchAndWrite(w, r, sock, cfg)
}

// cacheVaryProperty reads the "cache_vary" directive, naming request
// headers whose values always split the cache's secondary key regardless of
// whether the upstream itself sends a matching Vary header (spec §4.6
// "cache_vary", spec §4.7 admission/Vary union).
func cacheVaryProperty(cfg *ferronconfig.ServerConfiguration) []string {
	var headers []string
	for _, e := range cfg.Entries["cache_vary"] {
		if len(e.Positional) == 0 {
			continue
		}
		headers = append(headers, e.Positional[0].String())
	}
	return headers
}

func (h *serverHandler) dispatchAndWrite(w http.ResponseWriter, r *http.Request, sock ferronconfig.SocketData, cfg *ferronconfig.ServerConfiguration) {
	start := time.Now()
	if cfg == nil {
		http.NotFound(w, r)
		metrics.ObserveRequest(http.StatusNotFound, start)
		return
	}

	chain, err := pipeline.ChainFromConfig(cfg)
	if err != nil {
		h.log.Error("building module chain", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		metrics.ObserveRequest(http.StatusInternalServerError, start)
		return
	}

	elog := h.log.ForRequest(uuid.NewString())
	result, err := h.dispatcher.Serve(r.Context(), r, cfg, sock, elog, chain)
	if err != nil {
		h.log.Error("dispatch failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		metrics.ObserveRequest(http.StatusInternalServerError, start)
		return
	}
	status := writeResult(w, result)
	metrics.ObserveRequest(status, start)
}

func writeResult(w http.ResponseWriter, result pipeline.Result) int {
	resp := result.Response
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return http.StatusNoContent
	}
	defer func() {
		if resp.Body != nil {
			resp.Body.Close()
		}
	}()

	header := w.Header()
	for k, vals := range resp.Header {
		for _, v := range vals {
			header.Add(k, v)
		}
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != nil {
		io.Copy(w, resp.Body)
	}
	return status
}

func socketDataFor(r *http.Request) ferronconfig.SocketData {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)

	var port uint16
	if local, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		if _, portStr, err := net.SplitHostPort(local.String()); err == nil {
			if p, ok := parsePort(portStr); ok {
				port = p
			}
		}
	}

	return ferronconfig.SocketData{
		LocalPort:   port,
		RemoteIP:    ip,
		IsLocalhost: ip != nil && ip.IsLoopback(),
	}
}

func parsePort(s string) (uint16, bool) {
	var n uint16
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint16(c-'0')
	}
	return n, s != ""
}
