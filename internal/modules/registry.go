package modules

import (
	"fmt"
	"sync"

	"github.com/ferronweb/ferron-core/internal/ferronconfig"
	"github.com/ferronweb/ferron-core/internal/pipeline"
)

// Registry resolves a ServerConfiguration into a runnable pipeline.Chain,
// selecting built-in modules by which properties the configuration
// entry carries ("proxy_to" routes to ReverseProxy, "root" routes to
// StaticFile). Grounded on the teacher's caddy.Context module
// instantiation (LoadModule + Provision) generalized from its JSON/
// Caddyfile-driven module graph to this core's simpler per-entry
// selection, since ferronconfig.ParsedDocument doesn't carry an
// explicit module list (spec §6 config-adapter boundary).
//
// Handles are cached per *ServerConfiguration since configurations are
// immutable and shared by reference for the process lifetime (spec §3).
type Registry struct {
	Global *pipeline.GlobalConfig
	RT     *pipeline.SecondaryRuntime

	mu      sync.Mutex
	handles map[*ferronconfig.ServerConfiguration]pipeline.Chain
}

// NewRegistry builds a Registry and installs it as pipeline.ChainFromConfig,
// so the dispatcher's error-handler re-entry path (spec §4.2) resolves
// chains through the same module set as the top-level request path.
func NewRegistry(global *pipeline.GlobalConfig, rt *pipeline.SecondaryRuntime) *Registry {
	r := &Registry{Global: global, RT: rt, handles: map[*ferronconfig.ServerConfiguration]pipeline.Chain{}}
	pipeline.ChainFromConfig = r.ChainFromConfig
	return r
}

// ChainFromConfig builds (or returns a cached) Chain for cfg.
func (r *Registry) ChainFromConfig(cfg *ferronconfig.ServerConfiguration) (pipeline.Chain, error) {
	r.mu.Lock()
	if chain, ok := r.handles[cfg]; ok {
		r.mu.Unlock()
		return chain, nil
	}
	r.mu.Unlock()

	loader, err := r.selectLoader(cfg)
	if err != nil {
		return pipeline.Chain{}, err
	}

	handle, err := loader.LoadModule(cfg, r.Global, r.RT)
	if err != nil {
		return pipeline.Chain{}, fmt.Errorf("modules: loading %s: %w", loader.ModuleInfo().Name, err)
	}
	chain := pipeline.Chain{Handlers: []pipeline.ModuleHandlers{handle.NewHandlers()}}

	r.mu.Lock()
	r.handles[cfg] = chain
	r.mu.Unlock()
	return chain, nil
}

func (r *Registry) selectLoader(cfg *ferronconfig.ServerConfiguration) (pipeline.ModuleLoader, error) {
	if _, ok := cfg.Get("proxy_to"); ok {
		return ReverseProxy{}, nil
	}
	return StaticFile{}, nil
}
