package reverseproxy

import (
	"crypto/tls"
	"time"
)

// Algorithm name constants as they appear in configuration (spec §3
// "load_balancing_method").
const (
	AlgoRoundRobin        = "round_robin"
	AlgoRandom            = "random"
	AlgoTwoRandomChoices  = "ip_hash" // alias retained for config compat; see ResolveAlgorithm
	AlgoLeastConnections  = "least_connections"
	AlgoTwoRandom         = "two_random_choices"
)

// ResolveAlgorithm maps a configured method name to its Algorithm
// implementation, defaulting to RoundRobin when unset or unrecognized
// (spec §4.5 "load_balancing_method, default round_robin").
func ResolveAlgorithm(method string) Algorithm {
	switch method {
	case AlgoRandom:
		return &Random{}
	case AlgoLeastConnections:
		return &LeastConnections{}
	case AlgoTwoRandom, AlgoTwoRandomChoices:
		return &TwoRandomChoices{}
	default:
		return &RoundRobin{}
	}
}

// Config is the ReverseProxy record of spec §3: the full set of
// directives attached to one matched configuration entry that enables
// proxying.
type Config struct {
	Backends []*Backend

	LoadBalancingMethod string

	GlobalConnectionLimit int
	DialTimeout           time.Duration
	IdleConnTimeout       time.Duration

	HealthWindow     time.Duration
	HealthMaxFails   int

	PreserveHostHeader bool
	Rewrite            *RewriteRules

	ProxyProtocol ProxyProtocolVersion

	EnableHTTP2 bool // proxy_http2
	ForceHTTP2  bool // proxy_http2_only

	// Keepalive controls whether a sender is returned to the connection
	// pool on check-in (spec §4.5 "Connection pooling"); when false every
	// request dials fresh.
	Keepalive bool

	// InsecureSkipVerify disables upstream TLS certificate verification
	// (spec §3 "disable_certificate_verification").
	InsecureSkipVerify bool

	// InterceptErrors, when set, discards an upstream response body and
	// triggers error-handler dispatch for any status >= 400 instead of
	// relaying it to the client (spec §3 "proxy_intercept_errors").
	InterceptErrors bool

	RetryAttempts int
}

// Engine is the live, running form of a Config: resolved algorithm,
// backend set with health tracking, and a shared connection pool.
type Engine struct {
	cfg       *Config
	backends  *BackendSet
	algorithm Algorithm
	pool      *ConnectionPool
	dialer    *Dialer
}

// NewEngine builds a runtime Engine from a static Config (spec §4.5
// "Reverse-proxy engine setup").
func NewEngine(cfg *Config) *Engine {
	health := NewHealthTracker(cfg.HealthWindow, cfg.HealthMaxFails)
	set := &BackendSet{Backends: cfg.Backends, Health: health}

	pool := NewConnectionPool(cfg.GlobalConnectionLimit)
	for _, b := range cfg.Backends {
		if b.LocalLimit > 0 {
			pool.SetLocalLimit(b.Address(), b.LocalLimit)
		}
	}

	var tlsCfg *tls.Config
	if cfg.InsecureSkipVerify {
		tlsCfg = &tls.Config{InsecureSkipVerify: true}
	}

	return &Engine{
		cfg:       cfg,
		backends:  set,
		algorithm: ResolveAlgorithm(cfg.LoadBalancingMethod),
		pool:      pool,
		dialer: &Dialer{
			DialTimeout:   cfg.DialTimeout,
			TLSConfig:     tlsCfg,
			EnableHTTP2:   cfg.EnableHTTP2,
			ForceHTTP2:    cfg.ForceHTTP2,
			ProxyProtocol: cfg.ProxyProtocol,
		},
	}
}
