package ferronconfig

import (
	"net"
	"strings"
)

// ErrorHandlerKind distinguishes the three states a configuration's
// error-handler filter can take (spec §3: Any | Status(u16) | none).
type ErrorHandlerKind int

const (
	ErrorHandlerNone ErrorHandlerKind = iota
	ErrorHandlerAny
	ErrorHandlerStatus
)

type ErrorHandlerFilter struct {
	Kind ErrorHandlerKind
	Code uint16
}

// Conditions bears a location prefix and a list of conditional predicates
// (spec §3 Filters.Conditions).
type Conditions struct {
	LocationPrefix string
	Predicates     []ConditionalData
}

// SlashCount returns the number of "/"-separated logical segments in the
// location prefix, used by the specificity ordering (spec §3 rule 6).
func (c *Conditions) SlashCount() int {
	if c == nil || c.LocationPrefix == "" || c.LocationPrefix == "/" {
		return 0
	}
	trimmed := strings.Trim(c.LocationPrefix, "/")
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "/") + 1
}

// Filters describes when a ServerConfiguration applies (spec §3 (b)).
type Filters struct {
	IsHost bool

	// Hostname, if set, may carry a leading "*." wildcard.
	Hostname       string
	HasHostname    bool
	HostnameIsWild bool

	IP    net.IP
	HasIP bool

	Port    uint16
	HasPort bool

	Conditions *Conditions

	ErrorHandler ErrorHandlerFilter
}

// DotCount returns the number of "." characters in Hostname, used by the
// specificity ordering (spec §3 rule 5).
func (f *Filters) DotCount() int {
	if !f.HasHostname {
		return 0
	}
	return strings.Count(f.Hostname, ".")
}

// ConditionalData is the closed set of per-location predicates (spec §3).
// It is implemented only by the types in this file; the interface method
// is unexported so no other package can introduce a new variant, keeping
// the set closed the way the spec's tagged union is closed.
type ConditionalData interface {
	isConditional()
}

// IpBlockList matches by CIDR, shared by reference (spec §3).
type IpBlockList struct {
	Blocks []*net.IPNet
}

func (b *IpBlockList) Contains(ip net.IP) bool {
	for _, blk := range b.Blocks {
		if blk.Contains(ip) {
			return true
		}
	}
	return false
}

type IsRemoteIP struct{ Blocks *IpBlockList }
type IsNotRemoteIP struct{ Blocks *IpBlockList }
type IsForwardedFor struct{ Blocks *IpBlockList }
type IsNotForwardedFor struct{ Blocks *IpBlockList }

type IsEqual struct{ A, B string }
type IsNotEqual struct{ A, B string }

type IsRegex struct {
	Template string
	Pattern  string
}
type IsNotRegex struct {
	Template string
	Pattern  string
}

// CELEngine evaluates a compiled CEL program against the input object
// described in spec §4.4 (method, protocol, uri, headers, socket_data,
// constants), substituting for the spec's Rego policy engine (see
// DESIGN.md / SPEC_FULL.md §4.4 for why). Engines are shared by
// reference; Eval must not mutate shared state.
type CELEngine interface {
	Eval(input map[string]any) (bool, error)
}

type IsCEL struct{ Engine CELEngine }

type SetConstant struct {
	Name  string
	Value string
}

type IsLanguage struct{ Tag string }

func (IsRemoteIP) isConditional()        {}
func (IsNotRemoteIP) isConditional()     {}
func (IsForwardedFor) isConditional()    {}
func (IsNotForwardedFor) isConditional() {}
func (IsEqual) isConditional()           {}
func (IsNotEqual) isConditional()        {}
func (IsRegex) isConditional()           {}
func (IsNotRegex) isConditional()        {}
func (IsCEL) isConditional()             {}
func (SetConstant) isConditional()       {}
func (IsLanguage) isConditional()        {}
