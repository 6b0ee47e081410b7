package ferrontls

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// OnDemandPermission decides whether a name encountered during a live
// handshake (one not present in static configuration) may have a
// certificate issued for it on demand (spec §4.6 "on-demand TLS ask
// gate"). Grounded on the teacher's PermissionByPath/CertificateAllowed
// contract (modules/caddytls/ondemand_path_test.go).
type OnDemandPermission interface {
	CertificateAllowed(ctx context.Context, name string) error
}

// AllowlistPermission permits exactly the configured names (spec §4.6
// "ask: static allowlist").
type AllowlistPermission struct {
	Names map[string]bool
}

func (p *AllowlistPermission) CertificateAllowed(_ context.Context, name string) error {
	if p.Names[name] {
		return nil
	}
	return fmt.Errorf("ferrontls: name %q is not in the on-demand allowlist", name)
}

// AskEndpointPermission defers the decision to an external HTTP "ask"
// endpoint, GETting it with ?domain=<name> and treating any non-2xx
// response as a denial (spec §4.6 "ask: external endpoint").
type AskEndpointPermission struct {
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration
}

func (p *AskEndpointPermission) httpClient() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: p.timeout()}
}

func (p *AskEndpointPermission) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return 5 * time.Second
}

func (p *AskEndpointPermission) CertificateAllowed(ctx context.Context, name string) error {
	u, err := url.Parse(p.Endpoint)
	if err != nil {
		return fmt.Errorf("ferrontls: invalid ask endpoint: %w", err)
	}
	q := u.Query()
	q.Set("domain", name)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("ferrontls: ask endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ferrontls: ask endpoint denied %q (status %d)", name, resp.StatusCode)
	}
	return nil
}
