// Package configadapter is the external collaborator spec §6 names:
// "the real KDL grammar is out of scope; configuration parsing is an
// external collaborator". It provides two minimal document adapters —
// TOML (the `--config` default) and YAML (`--config-adapter
// yaml-legacy`) — that parse into ferronconfig.ParsedDocument, so the
// core can be exercised end to end without reimplementing KDL.
// Grounded on the teacher's caddyconfig/caddyfile adapter boundary
// (Dispenser/ServerBlock feeding caddyconfig.Load), realized here with
// github.com/BurntSushi/toml and gopkg.in/yaml.v3 in place of a
// hand-rolled Caddyfile lexer.
package configadapter

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ferronweb/ferron-core/internal/ferronconfig"
)

type rawDocument struct {
	Host []rawHost `toml:"host" yaml:"host"`
}

type rawHost struct {
	Spec        string                 `toml:"spec" yaml:"spec"`
	Properties  map[string]any         `toml:"properties" yaml:"properties"`
	Location    []rawLocation          `toml:"location" yaml:"location"`
	ErrorConfig []rawErrorConfig       `toml:"error_config" yaml:"error_config"`
}

type rawLocation struct {
	Prefix     string         `toml:"prefix" yaml:"prefix"`
	Properties map[string]any `toml:"properties" yaml:"properties"`
}

type rawErrorConfig struct {
	Status     []int          `toml:"status" yaml:"status"`
	Properties map[string]any `toml:"properties" yaml:"properties"`
}

// ParseTOML parses a TOML-encoded configuration document (the default
// adapter for `--config`).
func ParseTOML(data []byte) (*ferronconfig.ParsedDocument, error) {
	var raw rawDocument
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("configadapter: invalid TOML document: %w", err)
	}
	return toParsedDocument(raw), nil
}

// ParseYAML parses a YAML-encoded configuration document, selected via
// `--config-adapter yaml-legacy`.
func ParseYAML(data []byte) (*ferronconfig.ParsedDocument, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("configadapter: invalid YAML document: %w", err)
	}
	return toParsedDocument(raw), nil
}

func toParsedDocument(raw rawDocument) *ferronconfig.ParsedDocument {
	doc := &ferronconfig.ParsedDocument{}
	for _, h := range raw.Host {
		dh := ferronconfig.DocumentHost{
			Spec:       h.Spec,
			Properties: toProperties(h.Properties),
		}
		for _, l := range h.Location {
			dh.Locations = append(dh.Locations, ferronconfig.DocumentLocation{
				Prefix:     l.Prefix,
				Properties: toProperties(l.Properties),
			})
		}
		for _, ec := range h.ErrorConfig {
			status := make([]uint16, 0, len(ec.Status))
			for _, s := range ec.Status {
				status = append(status, uint16(s))
			}
			dh.ErrorConfigs = append(dh.ErrorConfigs, ferronconfig.DocumentErrorConfig{
				Status:     status,
				Properties: toProperties(ec.Properties),
			})
		}
		doc.Hosts = append(doc.Hosts, dh)
	}
	return doc
}

// toProperties converts a decoded map[string]any into
// map[string][]DocumentValue: a scalar becomes a single-entry list, a
// list becomes one Entry per element (supporting directives that may
// be repeated, e.g. multiple `proxy_to` backends).
func toProperties(m map[string]any) map[string][]ferronconfig.DocumentValue {
	out := make(map[string][]ferronconfig.DocumentValue, len(m))
	for name, raw := range m {
		switch v := raw.(type) {
		case []any:
			vals := make([]ferronconfig.DocumentValue, 0, len(v))
			for _, elem := range v {
				vals = append(vals, ferronconfig.DocumentValue{Positional: []ferronconfig.Value{toValue(elem)}})
			}
			out[name] = vals
		default:
			out[name] = []ferronconfig.DocumentValue{{Positional: []ferronconfig.Value{toValue(v)}}}
		}
	}
	return out
}

func toValue(raw any) ferronconfig.Value {
	switch v := raw.(type) {
	case string:
		return ferronconfig.StringValue(v)
	case bool:
		return ferronconfig.BoolValue(v)
	case int:
		return ferronconfig.IntValue(int64(v))
	case int64:
		return ferronconfig.IntValue(v)
	case float64:
		// TOML/YAML decode whole numbers as float64 in some paths;
		// preserve integer-ness when there's no fractional part.
		if v == float64(int64(v)) {
			return ferronconfig.IntValue(int64(v))
		}
		return ferronconfig.FloatValue(v)
	default:
		return ferronconfig.NullValue()
	}
}
