package ferronconfig

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func rootCfg(root string, f Filters) *ServerConfiguration {
	return &ServerConfiguration{
		Entries: map[string]Entries{"root": {{Positional: []Value{StringValue(root)}}}},
		Filters: f,
	}
}

// TestHostAndLocationSpecificity grounds spec §8 scenario 1.
func TestHostAndLocationSpecificity(t *testing.T) {
	global := rootCfg("/a", Filters{Port: 8080, HasPort: true})
	example := rootCfg("/b", Filters{IsHost: true, Hostname: "example.com", HasHostname: true, Port: 8080, HasPort: true})
	exampleX := rootCfg("/c", Filters{
		IsHost: true, Hostname: "example.com", HasHostname: true, Port: 8080, HasPort: true,
		Conditions: &Conditions{LocationPrefix: "/x"},
	})

	idx := NewIndex([]*ServerConfiguration{global, example, exampleX})

	req1 := httptest.NewRequest(http.MethodGet, "http://example.com:8080/x/file.txt", nil)
	cfg1 := idx.Lookup(req1, SocketData{LocalPort: 8080})
	require.NotNil(t, cfg1)
	entry, _ := cfg1.Get("root")
	require.Equal(t, "/c", entry.Positional[0].String())

	req2 := httptest.NewRequest(http.MethodGet, "http://example.com:8080/y", nil)
	cfg2 := idx.Lookup(req2, SocketData{LocalPort: 8080})
	entry2, _ := cfg2.Get("root")
	require.Equal(t, "/b", entry2.Positional[0].String())

	req3 := httptest.NewRequest(http.MethodGet, "http://other:8080/", nil)
	cfg3 := idx.Lookup(req3, SocketData{LocalPort: 8080})
	entry3, _ := cfg3.Get("root")
	require.Equal(t, "/a", entry3.Positional[0].String())
}

// TestErrorHandlerDispatch grounds spec §8 scenario 2.
func TestErrorHandlerDispatch(t *testing.T) {
	www := rootCfg("/www", Filters{IsHost: true, Hostname: "example.com", HasHostname: true, Port: 80, HasPort: true})
	errCfg := rootCfg("/errors", Filters{
		IsHost: true, Hostname: "example.com", HasHostname: true, Port: 80, HasPort: true,
		ErrorHandler: ErrorHandlerFilter{Kind: ErrorHandlerStatus, Code: 404},
	})

	idx := NewIndex([]*ServerConfiguration{www, errCfg})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/missing.html", nil)
	cfg := idx.LookupError(req, SocketData{LocalPort: 80}, 404)
	require.NotNil(t, cfg)
	entry, _ := cfg.Get("root")
	require.Equal(t, "/errors", entry.Positional[0].String())

	def := idx.Lookup(req, SocketData{LocalPort: 80})
	entry2, _ := def.Get("root")
	require.Equal(t, "/www", entry2.Positional[0].String())
}

func TestWildcardHostname(t *testing.T) {
	wild := rootCfg("/wild", Filters{IsHost: true, Hostname: "*.example.com", HasHostname: true, HostnameIsWild: true})
	exact := rootCfg("/exact", Filters{IsHost: true, Hostname: "example.com", HasHostname: true})

	idx := NewIndex([]*ServerConfiguration{wild, exact})

	req := httptest.NewRequest(http.MethodGet, "http://foo.example.com/", nil)
	cfg := idx.Lookup(req, SocketData{})
	entry, _ := cfg.Get("root")
	require.Equal(t, "/wild", entry.Positional[0].String())

	req2 := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	cfg2 := idx.Lookup(req2, SocketData{})
	entry2, _ := cfg2.Get("root")
	require.Equal(t, "/exact", entry2.Positional[0].String())
}

func TestTieBreakByInsertionOrder(t *testing.T) {
	first := rootCfg("/first", Filters{IsHost: true, Hostname: "example.com", HasHostname: true})
	second := rootCfg("/second", Filters{IsHost: true, Hostname: "example.com", HasHostname: true})

	idx := NewIndex([]*ServerConfiguration{first, second})
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	cfg := idx.Lookup(req, SocketData{})
	entry, _ := cfg.Get("root")
	require.Equal(t, "/second", entry.Positional[0].String(), "later insertion should win ties")
}
