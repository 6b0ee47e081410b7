// The serve subcommand wires the compiled Configuration Index (C1)
// into the Listener Pool (C2), TLS/ACME Engine (C3), and Request
// Pipeline (C4), reading a configuration document through the
// configadapter external-collaborator boundary (spec §6). Grounded on
// the teacher's cmd/commandfuncs.go cmdRun, simplified from Caddy's
// admin-API-driven reload lifecycle to a direct foreground run since
// the admin API is out of this core's scope.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ferronweb/ferron-core/internal/configadapter"
	"github.com/ferronweb/ferron-core/internal/ferronconfig"
	"github.com/ferronweb/ferron-core/internal/ferronlog"
	"github.com/ferronweb/ferron-core/internal/ferrontls"
	"github.com/ferronweb/ferron-core/internal/listener"
	"github.com/ferronweb/ferron-core/internal/modulecache"
	"github.com/ferronweb/ferron-core/internal/modules"
	"github.com/ferronweb/ferron-core/internal/pipeline"
	"github.com/ferronweb/ferron-core/internal/respcache"
)

type serveFlags struct {
	configPath   string
	configString string
	adapter      string
	addrs        []string
	tlsAddrs     []string
	webroot      string
	acmeEmail    string
	acmeStaging  bool
	cacheBytes   int64
	cacheEntries int
}

func serveCommand() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "path to a configuration document")
	flags.StringVar(&f.configString, "config-string", "", "configuration document given inline instead of --config")
	flags.StringVar(&f.adapter, "config-adapter", "toml", "configuration document format: toml or yaml-legacy")
	flags.StringSliceVar(&f.addrs, "addr", []string{":8080"}, "plaintext listen address, may be repeated")
	flags.StringSliceVar(&f.tlsAddrs, "addr-tls", nil, "TLS listen address, may be repeated")
	flags.StringVar(&f.webroot, "webroot", ".", "default document root when a configuration entry has no root property")
	flags.StringVar(&f.acmeEmail, "acme-email", "", "contact email for ACME certificate issuance")
	flags.BoolVar(&f.acmeStaging, "acme-staging", false, "use the ACME staging directory instead of production")
	flags.Int64Var(&f.cacheBytes, "cache-bytes", 64<<20, "response cache byte budget, 0 disables caching")
	flags.IntVar(&f.cacheEntries, "cache-max-entries", 128, "response cache entry-count budget (cache_max_entries default)")

	return cmd
}

func runServe(ctx context.Context, f serveFlags) error {
	log, err := ferronlog.New(ferronlog.ChannelStdout)
	if err != nil {
		return fmt.Errorf("serve: building logger: %w", err)
	}
	defer log.Sync()

	index, hostnames, err := loadIndex(f)
	if err != nil {
		return err
	}

	global := &pipeline.GlobalConfig{DefaultHTTPPort: 80, DefaultHTTPSPort: 443, WebRoot: f.webroot}
	rt := &pipeline.SecondaryRuntime{ModuleCache: modulecache.New()}
	modules.NewRegistry(global, rt)

	dispatcher := &pipeline.Dispatcher{Index: index}

	var cache *respcache.Cache
	if f.cacheBytes > 0 {
		cache = respcache.New(f.cacheBytes, f.cacheEntries)
	}

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var tlsMgr *ferrontls.Manager
	if len(f.tlsAddrs) > 0 {
		tlsMgr, err = ferrontls.NewManager(ferrontls.IssuerConfig{
			Email:   f.acmeEmail,
			Staging: f.acmeStaging,
		}, hostnames, nil, log)
		if err != nil {
			return fmt.Errorf("serve: building TLS manager: %w", err)
		}
		if err := tlsMgr.Start(runCtx); err != nil {
			return fmt.Errorf("serve: starting TLS manager: %w", err)
		}
		defer tlsMgr.Stop()
	}

	handler := newServerHandler(dispatcher, cache, tlsMgr, log)

	pool := listener.NewPool(256, log)
	defer pool.Close()

	for _, raw := range f.addrs {
		addr, err := listener.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		if err := pool.Bind(runCtx, addr, nil, true); err != nil {
			return fmt.Errorf("serve: binding %s: %w", raw, err)
		}
		log.Info("bound plaintext listener", zap.String("address", raw))
	}

	for _, raw := range f.tlsAddrs {
		addr, err := listener.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		if err := pool.Bind(runCtx, addr, tlsMgr.TLSConfig(), true); err != nil {
			return fmt.Errorf("serve: binding %s: %w", raw, err)
		}
		log.Info("bound TLS listener", zap.String("address", raw))
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln := newChannelListener(pool)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case <-runCtx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		ln.Close()
		return nil
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

func loadIndex(f serveFlags) (*ferronconfig.Index, []string, error) {
	var data []byte
	var err error
	switch {
	case f.configString != "":
		data = []byte(f.configString)
	case f.configPath != "":
		data, err = os.ReadFile(f.configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("serve: reading %s: %w", f.configPath, err)
		}
	default:
		return ferronconfig.NewIndex(nil), nil, nil
	}

	var doc *ferronconfig.ParsedDocument
	switch strings.ToLower(f.adapter) {
	case "yaml-legacy", "yaml":
		doc, err = configadapter.ParseYAML(data)
	default:
		doc, err = configadapter.ParseTOML(data)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("serve: parsing configuration: %w", err)
	}

	configs := ferronconfig.Build(doc)
	index := ferronconfig.NewIndex(configs)

	hostnames := make([]string, 0, len(doc.Hosts))
	for _, h := range doc.Hosts {
		if name, _, ok := strings.Cut(h.Spec, ":"); ok {
			if name != "*" {
				hostnames = append(hostnames, name)
			}
		} else if h.Spec != "*" {
			hostnames = append(hostnames, h.Spec)
		}
	}
	return index, hostnames, nil
}
