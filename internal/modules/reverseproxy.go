package modules

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ferronweb/ferron-core/internal/ferronconfig"
	"github.com/ferronweb/ferron-core/internal/ferronlog"
	"github.com/ferronweb/ferron-core/internal/pipeline"
	"github.com/ferronweb/ferron-core/internal/reverseproxy"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultHealthWindow = 30 * time.Second
)

// ReverseProxy wires a configuration's "proxy_to" / "load_balancing_method"
// properties (spec §3, §4.5) into a live reverseproxy.Engine. Grounded
// on the teacher's modules/caddyhttp/reverseproxy package's Provision
// step, which turns Caddyfile upstream strings into concrete
// *reverseproxy.Upstream values before the handler ever runs.
type ReverseProxy struct{}

func (ReverseProxy) ModuleInfo() pipeline.ModuleInfo {
	return pipeline.ModuleInfo{Name: "reverse_proxy"}
}

func (ReverseProxy) Requirements() map[string]struct{} { return nil }

func (ReverseProxy) ValidateConfiguration(cfg *ferronconfig.ServerConfiguration, used map[string]struct{}) error {
	return nil
}

func (ReverseProxy) LoadModule(cfg *ferronconfig.ServerConfiguration, global *pipeline.GlobalConfig, rt *pipeline.SecondaryRuntime) (pipeline.ModuleHandle, error) {
	entries := cfg.Entries["proxy_to"]
	backends := make([]*reverseproxy.Backend, 0, len(entries))
	for _, e := range entries {
		if len(e.Positional) == 0 {
			continue
		}
		target := e.Positional[0].String()
		if strings.HasPrefix(target, "unix:") {
			backends = append(backends, &reverseproxy.Backend{UnixPath: strings.TrimPrefix(target, "unix:")})
			continue
		}
		u, err := url.Parse(target)
		if err != nil {
			continue
		}
		backends = append(backends, &reverseproxy.Backend{URL: u})
	}

	method := ""
	if e, ok := cfg.Get("load_balancing_method"); ok && len(e.Positional) > 0 {
		method = e.Positional[0].String()
	}

	retryConnection := boolProperty(cfg, "retry_connection", false)
	retries := 1
	if retryConnection && len(backends) > 0 {
		retries = len(backends)
	}

	rcfg := &reverseproxy.Config{
		Backends:              backends,
		LoadBalancingMethod:   method,
		GlobalConnectionLimit: 256,
		DialTimeout:           defaultDialTimeout,
		HealthWindow:          defaultHealthWindow,
		HealthMaxFails:        3,
		RetryAttempts:         retries,
		Keepalive:             boolProperty(cfg, "proxy_keepalive", true),
		EnableHTTP2:           boolProperty(cfg, "proxy_http2", false),
		ForceHTTP2:            boolProperty(cfg, "proxy_http2_only", false),
		InsecureSkipVerify:    boolProperty(cfg, "disable_certificate_verification", false),
		InterceptErrors:       boolProperty(cfg, "proxy_intercept_errors", false),
		ProxyProtocol:         proxyProtocolProperty(cfg),
		Rewrite:               rewriteRulesFromConfig(cfg),
	}
	return &reverseProxyHandle{engine: reverseproxy.NewEngine(rcfg), interceptErrors: rcfg.InterceptErrors}, nil
}

// boolProperty reads a single boolean directive, falling back to def
// when the property is absent or not a bool literal.
func boolProperty(cfg *ferronconfig.ServerConfiguration, name string, def bool) bool {
	e, ok := cfg.Get(name)
	if !ok || len(e.Positional) == 0 {
		return def
	}
	if b, isBool := e.Positional[0].Bool(); isBool {
		return b
	}
	return def
}

// proxyProtocolProperty maps the "proxy_header" directive's mode string
// to the reverseproxy PROXY-protocol version it requests.
func proxyProtocolProperty(cfg *ferronconfig.ServerConfiguration) reverseproxy.ProxyProtocolVersion {
	e, ok := cfg.Get("proxy_header")
	if !ok || len(e.Positional) == 0 {
		return reverseproxy.ProxyProtocolNone
	}
	switch strings.ToLower(e.Positional[0].String()) {
	case "v1":
		return reverseproxy.ProxyProtocolV1
	case "v2":
		return reverseproxy.ProxyProtocolV2
	default:
		return reverseproxy.ProxyProtocolNone
	}
}

// rewriteRulesFromConfig builds the upstream-request header rewrite set
// from the "headers_to_add" (absent-only), "headers_to_replace"
// (overwrite), and "headers_to_remove" directives (spec §3, §4.5). Each
// add/replace entry is a (name, value) pair; each remove entry names a
// single header.
func rewriteRulesFromConfig(cfg *ferronconfig.ServerConfiguration) *reverseproxy.RewriteRules {
	rules := &reverseproxy.RewriteRules{
		RequestHeadersAdd: headerOpsFromEntries(cfg.Entries["headers_to_add"]),
		RequestHeadersSet: headerOpsFromEntries(cfg.Entries["headers_to_replace"]),
	}
	for _, e := range cfg.Entries["headers_to_remove"] {
		if len(e.Positional) == 0 {
			continue
		}
		rules.RequestHeadersDel = append(rules.RequestHeadersDel, e.Positional[0].String())
	}
	if len(rules.RequestHeadersAdd) == 0 && len(rules.RequestHeadersSet) == 0 && len(rules.RequestHeadersDel) == 0 {
		return nil
	}
	return rules
}

func headerOpsFromEntries(entries ferronconfig.Entries) []reverseproxy.HeaderOp {
	ops := make([]reverseproxy.HeaderOp, 0, len(entries))
	for _, e := range entries {
		if len(e.Positional) < 2 {
			continue
		}
		ops = append(ops, reverseproxy.HeaderOp{
			Name:  e.Positional[0].String(),
			Value: e.Positional[1].String(),
		})
	}
	return ops
}

type reverseProxyHandle struct {
	engine          *reverseproxy.Engine
	interceptErrors bool
}

func (h *reverseProxyHandle) NewHandlers() pipeline.ModuleHandlers {
	return &reverseProxyHandlers{engine: h.engine, interceptErrors: h.interceptErrors}
}

type reverseProxyHandlers struct {
	engine          *reverseproxy.Engine
	interceptErrors bool
}

func (h *reverseProxyHandlers) RequestHandler(ctx context.Context, req *http.Request, cfg *ferronconfig.ServerConfiguration, sock pipeline.SocketData, elog *ferronlog.ErrorLogger) (pipeline.ResponseData, error) {
	clientIP := ""
	if sock.RemoteIP != nil {
		clientIP = sock.RemoteIP.String()
	}

	resp, err := h.engine.Serve(ctx, req, clientIP)
	if err != nil {
		if elog != nil {
			elog.Warn("upstream request failed", zap.Error(err))
		}
		return pipeline.ResponseData{Kind: pipeline.ShortCircuitStatus, Status: http.StatusBadGateway}, nil
	}

	if h.interceptErrors && resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return pipeline.ResponseData{Kind: pipeline.ShortCircuitStatus, Status: resp.StatusCode}, nil
	}
	return pipeline.ResponseData{Kind: pipeline.ProduceResponse, Response: resp}, nil
}

func (h *reverseProxyHandlers) ResponseModifyingHandler(ctx context.Context, resp *http.Response) (*http.Response, error) {
	return resp, nil
}
