// Package pipeline implements the Request Pipeline and Module Handler
// Contract (spec §4.2 / "C4"): per-request configuration selection,
// URL sanitizing and rewriting, the ordered request/response-modifying
// module chain, and error-handler dispatch with a re-entry cap.
// Grounded on the teacher's modules.go/interface.go (caddy.Module,
// Provisioner, Validator) for the module lifecycle shape, and
// caddyhttp's route-then-handler-chain dispatch for the per-request
// flow.
package pipeline

import (
	"context"
	"net/http"

	"github.com/ferronweb/ferron-core/internal/ferronconfig"
	"github.com/ferronweb/ferron-core/internal/ferronlog"
)

// GlobalConfig holds process-wide settings visible to every module at
// load time (spec §4.2 "LoadModule(cfg, global, rt)").
type GlobalConfig struct {
	DefaultHTTPPort  uint16
	DefaultHTTPSPort uint16
	WebRoot          string
}

// SecondaryRuntime is the set of cross-cutting runtime services a
// module may depend on without importing the concrete packages that
// provide them (keeps pipeline free of an import cycle on
// reverseproxy/respcache/ferrontls).
type SecondaryRuntime struct {
	ModuleCache GetOrIniter
}

// GetOrIniter is the narrow interface pipeline needs from
// internal/modulecache, kept here to avoid a direct dependency from
// this package onto that one.
type GetOrIniter interface {
	GetOrInit(key string, init func() (any, error)) (any, error)
}

// ModuleInfo names and self-describes a module (spec §4.2, mirrors the
// teacher's caddy.ModuleInfo).
type ModuleInfo struct {
	Name         string
	Capabilities Capabilities
}

// Capabilities declares which optional handler interfaces a module
// implements, so the pipeline only invokes those (spec §4.2 "(NEW, per
// §9 rearchitecture guidance)").
type Capabilities struct {
	Websocket bool
	Connect   bool
}

// ModuleLoader is implemented by every built-in or peripheral module
// (spec §4.2).
type ModuleLoader interface {
	ModuleInfo() ModuleInfo
	Requirements() map[string]struct{}
	ValidateConfiguration(cfg *ferronconfig.ServerConfiguration, used map[string]struct{}) error
	LoadModule(cfg *ferronconfig.ServerConfiguration, global *GlobalConfig, rt *SecondaryRuntime) (ModuleHandle, error)
}

// ModuleHandle is the loaded, config-bound instance of a module,
// capable of producing the per-request handler set.
type ModuleHandle interface {
	NewHandlers() ModuleHandlers
}

// ModuleHandlers is the two-phase per-request contract (spec §4.2).
type ModuleHandlers interface {
	RequestHandler(ctx context.Context, req *http.Request, cfg *ferronconfig.ServerConfiguration, sock SocketData, elog *ferronlog.ErrorLogger) (ResponseData, error)
	ResponseModifyingHandler(ctx context.Context, resp *http.Response) (*http.Response, error)
}

// WebsocketHandler and ConnectHandler are optional capabilities a
// module may additionally implement. Dispatcher does not invoke them
// and does not read ModuleInfo.Capabilities; Serve calls only the
// ModuleHandlers methods.
type WebsocketHandler interface {
	HandleWebsocket(ctx context.Context, w http.ResponseWriter, req *http.Request) error
}

type ConnectHandler interface {
	HandleConnect(ctx context.Context, w http.ResponseWriter, req *http.Request) error
}

// SocketData carries the raw connection-level facts a module may need
// (spec §3 "SocketData"), mirroring ferronconfig.SocketData so this
// package doesn't need to import the conditionals file directly for
// just this struct shape.
type SocketData = ferronconfig.SocketData

// ResponseDataKind tags the sum type returned by RequestHandler (spec
// §4.2).
type ResponseDataKind int

const (
	PassThrough ResponseDataKind = iota
	ProduceResponse
	ShortCircuitStatus
	RewriteRemoteAddress
)

// ResponseData is the tagged union a module's RequestHandler returns.
type ResponseData struct {
	Kind ResponseDataKind

	Response *http.Response // ProduceResponse

	Status  int         // ShortCircuitStatus
	Headers http.Header // ShortCircuitStatus (optional)

	NewRemoteAddr string // RewriteRemoteAddress
}
