// Package modules holds the built-in module loaders wired into the
// request pipeline's module registry (spec §4.2's ModuleLoader /
// ModuleHandle / ModuleHandlers contract). Grounded on the teacher's
// modules/ tree, where each subdirectory is a self-registering
// caddy.Module; simplified here to the handful of built-ins this core
// actually dispatches on (static files, reverse proxying).
package modules

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ferronweb/ferron-core/internal/ferronconfig"
	"github.com/ferronweb/ferron-core/internal/ferronlog"
	"github.com/ferronweb/ferron-core/internal/pipeline"
)

// StaticFile serves files out of a configuration entry's "root"
// directory (spec §3 "root" property), grounded on the teacher's
// modules/caddyhttp/fileserver package, narrowed to the
// request/response-modifying handler pair this core's pipeline calls.
type StaticFile struct{}

func (StaticFile) ModuleInfo() pipeline.ModuleInfo {
	return pipeline.ModuleInfo{Name: "static_file"}
}

func (StaticFile) Requirements() map[string]struct{} { return nil }

func (StaticFile) ValidateConfiguration(cfg *ferronconfig.ServerConfiguration, used map[string]struct{}) error {
	return nil
}

func (StaticFile) LoadModule(cfg *ferronconfig.ServerConfiguration, global *pipeline.GlobalConfig, rt *pipeline.SecondaryRuntime) (pipeline.ModuleHandle, error) {
	root := global.WebRoot
	if entry, ok := cfg.Get("root"); ok && len(entry.Positional) > 0 {
		root = entry.Positional[0].String()
	}
	return &staticFileHandle{root: root}, nil
}

type staticFileHandle struct{ root string }

func (h *staticFileHandle) NewHandlers() pipeline.ModuleHandlers {
	return &staticFileHandlers{root: h.root}
}

type staticFileHandlers struct{ root string }

// RequestHandler resolves req.URL.Path under root, following the
// spec's already-sanitized URL invariant (spec §4.2 "URL sanitizing
// runs before any module sees the request"): a directory falls back to
// index.html, a miss short-circuits 404.
func (h *staticFileHandlers) RequestHandler(ctx context.Context, req *http.Request, cfg *ferronconfig.ServerConfiguration, sock pipeline.SocketData, elog *ferronlog.ErrorLogger) (pipeline.ResponseData, error) {
	full := filepath.Join(h.root, filepath.Clean("/"+req.URL.Path))

	info, err := os.Stat(full)
	if err != nil {
		return pipeline.ResponseData{Kind: pipeline.ShortCircuitStatus, Status: http.StatusNotFound}, nil
	}
	if info.IsDir() {
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
		if err != nil {
			return pipeline.ResponseData{Kind: pipeline.ShortCircuitStatus, Status: http.StatusNotFound}, nil
		}
	}

	f, err := os.Open(full)
	if err != nil {
		return pipeline.ResponseData{Kind: pipeline.ShortCircuitStatus, Status: http.StatusInternalServerError}, nil
	}

	header := http.Header{}
	if ctype := mime.TypeByExtension(filepath.Ext(full)); ctype != "" {
		header.Set("Content-Type", ctype)
	}
	header.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	resp := &http.Response{
		StatusCode:    http.StatusOK,
		Header:        header,
		Body:          f,
		ContentLength: info.Size(),
	}
	return pipeline.ResponseData{Kind: pipeline.ProduceResponse, Response: resp}, nil
}

func (h *staticFileHandlers) ResponseModifyingHandler(ctx context.Context, resp *http.Response) (*http.Response, error) {
	return resp, nil
}
