package ferronconfig

import (
	"net"
	"strconv"
	"strings"
)

// ParsedDocument is the assumed input type at the boundary between an
// external configuration-document adapter (spec §6: "the real KDL
// grammar is out of scope; configuration parsing is an external
// collaborator") and this package's Index. A ParsedDocument is the
// already-parsed tree: host blocks, each with property entries and
// nested location/error-handler blocks, mirroring spec §3's "top-level
// nodes are host specifiers... children being property entries...
// and nested blocks".
type ParsedDocument struct {
	Hosts []DocumentHost
}

// DocumentHost is one top-level host specifier block ("host:port",
// "ip:port", "*", or "globals").
type DocumentHost struct {
	Spec       string // e.g. "example.com:443", "*", "10.0.0.1:8080"
	Properties map[string][]DocumentValue
	Locations  []DocumentLocation
	ErrorConfigs []DocumentErrorConfig
}

// DocumentLocation is a nested `location "/prefix" { ... }` block.
type DocumentLocation struct {
	Prefix     string
	Properties map[string][]DocumentValue
}

// DocumentErrorConfig is a nested `error_config [status] { ... }` block.
// An empty Status slice means "catch-all" (spec §3 error-handler filter).
type DocumentErrorConfig struct {
	Status     []uint16
	Properties map[string][]DocumentValue
}

// DocumentValue is one positional-or-named property value as produced
// by a TOML/YAML (or, eventually, KDL) adapter.
type DocumentValue struct {
	Positional []Value
	Named      map[string]Value
}

// Build compiles a ParsedDocument into the []*ServerConfiguration list
// NewIndex expects, deriving Filters from each host/location/
// error-config block's position in the tree (spec §4.1 "compiling a
// parsed configuration document"). This is a structural translation
// only: it does not interpret property semantics beyond what's needed
// to populate Filters (host/port/location) and leaves Modules empty;
// the Registry in internal/modules builds a module chain from Entries,
// kept out of this package per its no-pipeline-import design (see
// types.go).
func Build(doc *ParsedDocument) []*ServerConfiguration {
	var out []*ServerConfiguration
	for _, h := range doc.Hosts {
		base := hostFilters(h.Spec)
		baseEntries := toEntries(h.Properties)

		out = append(out, &ServerConfiguration{
			Entries: baseEntries,
			Filters: base,
		})

		for _, loc := range h.Locations {
			f := base
			f.Conditions = &Conditions{LocationPrefix: loc.Prefix}
			out = append(out, &ServerConfiguration{
				Entries: mergeEntries(baseEntries, toEntries(loc.Properties)),
				Filters: f,
			})
		}

		for _, ec := range h.ErrorConfigs {
			f := base
			if len(ec.Status) == 0 {
				f.ErrorHandler = ErrorHandlerFilter{Kind: ErrorHandlerAny}
			} else {
				for _, code := range ec.Status {
					f2 := f
					f2.ErrorHandler = ErrorHandlerFilter{Kind: ErrorHandlerStatus, Code: code}
					out = append(out, &ServerConfiguration{
						Entries: mergeEntries(baseEntries, toEntries(ec.Properties)),
						Filters: f2,
					})
				}
				continue
			}
			out = append(out, &ServerConfiguration{
				Entries: mergeEntries(baseEntries, toEntries(ec.Properties)),
				Filters: f,
			})
		}
	}
	return out
}

// hostFilters derives the deterministic-edge Filters from a host
// specifier string ("host:port", "ip:port", "*", "globals").
func hostFilters(spec string) Filters {
	if spec == "*" || spec == "globals" || spec == "" {
		return Filters{}
	}

	host, portStr, err := net.SplitHostPort(spec)
	if err != nil {
		host, portStr = spec, ""
	}

	f := Filters{}
	if ip := net.ParseIP(host); ip != nil {
		f.IP = ip
		f.HasIP = true
	} else {
		f.IsHost = true
		f.Hostname = host
		f.HasHostname = true
		f.HostnameIsWild = strings.HasPrefix(host, "*.")
	}
	if portStr != "" {
		if p, err := strconv.ParseUint(portStr, 10, 16); err == nil {
			f.Port = uint16(p)
			f.HasPort = true
		}
	}
	return f
}

func toEntries(props map[string][]DocumentValue) map[string]Entries {
	out := make(map[string]Entries, len(props))
	for name, vals := range props {
		entries := make(Entries, 0, len(vals))
		for _, v := range vals {
			entries = append(entries, Entry{Positional: v.Positional, Named: v.Named})
		}
		out[name] = entries
	}
	return out
}

func mergeEntries(base, override map[string]Entries) map[string]Entries {
	out := make(map[string]Entries, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
