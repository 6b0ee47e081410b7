package pipeline

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/ferronweb/ferron-core/internal/ferronconfig"
	"github.com/ferronweb/ferron-core/internal/ferronlog"
)

// MaxErrorHandlerReentry bounds how many times error-handler dispatch
// may recurse for a single client request (spec §4.2 "one re-entry
// cap"): an error produced while an error handler runs is not
// dispatched again; the pipeline returns a plain response carrying that
// error's status.
const MaxErrorHandlerReentry = 1

type errorDepthKey struct{}

func errorDepth(ctx context.Context) int {
	if v, ok := ctx.Value(errorDepthKey{}).(int); ok {
		return v
	}
	return 0
}

func withErrorDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, errorDepthKey{}, depth)
}

// Chain is the ordered list of module handler sets attached to one
// matched configuration entry, in registration order (spec §4.2 "an
// ordered chain of module handlers").
type Chain struct {
	Handlers []ModuleHandlers
}

// Dispatcher runs the two-phase module chain for one request and
// performs error-handler dispatch on short-circuit/failure, grounded on
// caddyhttp's route-then-handler-chain execution model generalized to
// the spec's explicit request/response-modifying phase split.
type Dispatcher struct {
	Index *ferronconfig.Index
}

// Result is what Serve hands back to the listener/transport layer:
// either a response to write, or an indication the connection should
// be upgraded/passed through to a capability handler.
type Result struct {
	Response      *http.Response
	RemoteAddr    string
	WantWebsocket bool
	WantConnect   bool
}

// Serve runs chain's request phase in registration order, then the
// response-modifying phase over every module that actually ran, in
// strict reverse order (spec §4.2, resolved Open Question 3: "the
// response-modifying chain runs over every module that participated in
// the request phase... in strict reverse registration order").
func (d *Dispatcher) Serve(ctx context.Context, req *http.Request, cfg *ferronconfig.ServerConfiguration, sock SocketData, elog *ferronlog.ErrorLogger, chain Chain) (Result, error) {
	var participated []ModuleHandlers
	remoteAddr := sock.RemoteIP.String()

	for _, h := range chain.Handlers {
		data, err := h.RequestHandler(ctx, req, cfg, sock, elog)
		if err != nil {
			return d.dispatchError(ctx, req, cfg, sock, elog, chain, http.StatusInternalServerError)
		}
		participated = append(participated, h)

		switch data.Kind {
		case PassThrough:
			continue
		case RewriteRemoteAddress:
			remoteAddr = data.NewRemoteAddr
			if ip := net.ParseIP(data.NewRemoteAddr); ip != nil {
				sock.RemoteIP = ip
			}
			continue
		case ShortCircuitStatus:
			return d.dispatchError(ctx, req, cfg, sock, elog, chain, data.Status)
		case ProduceResponse:
			resp := data.Response
			for i := len(participated) - 1; i >= 0; i-- {
				var modErr error
				resp, modErr = participated[i].ResponseModifyingHandler(ctx, resp)
				if modErr != nil {
					return d.dispatchError(ctx, req, cfg, sock, elog, chain, http.StatusInternalServerError)
				}
			}
			return Result{Response: resp, RemoteAddr: remoteAddr}, nil
		}
	}

	// No module produced a terminal response: the pipeline's default
	// static-file/forward-proxy terminal is the caller's responsibility
	// (pipeline only orchestrates the module contract).
	return Result{RemoteAddr: remoteAddr}, nil
}

// dispatchError looks up the error-handler configuration for status and
// re-enters Serve with a bumped depth counter, up to
// MaxErrorHandlerReentry times (spec §4.2 "one re-entry cap").
func (d *Dispatcher) dispatchError(ctx context.Context, req *http.Request, cfg *ferronconfig.ServerConfiguration, sock SocketData, elog *ferronlog.ErrorLogger, originalChain Chain, status int) (Result, error) {
	depth := errorDepth(ctx)
	if depth >= MaxErrorHandlerReentry {
		return Result{Response: plainStatusResponse(status)}, nil
	}

	errCfg := d.Index.LookupError(req, toFerronSocket(sock), uint16(status))
	if errCfg == nil {
		return Result{Response: plainStatusResponse(status)}, nil
	}

	nextCtx := withErrorDepth(ctx, depth+1)
	chain, err := ChainFromConfig(errCfg)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: building error-handler chain: %w", err)
	}
	return d.Serve(nextCtx, req, errCfg, sock, elog, chain)
}

func plainStatusResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       http.NoBody,
	}
}

func toFerronSocket(s SocketData) ferronconfig.SocketData { return s }

// ChainFromConfig is supplied by the module-registry layer (outside
// this package) to turn a ServerConfiguration's module list into a
// runnable Chain; declared here as a package-level var so Dispatcher
// doesn't need to import the concrete module registry and create an
// import cycle.
var ChainFromConfig = func(cfg *ferronconfig.ServerConfiguration) (Chain, error) {
	return Chain{}, fmt.Errorf("pipeline: ChainFromConfig not wired")
}
