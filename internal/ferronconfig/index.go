package ferronconfig

import (
	"net/http"
	"sort"
)

// Index is the compiled Configuration Index (spec §4.1). Build one with
// NewIndex from a parsed configuration list; it answers per-request
// lookups in O(depth) and is safe for concurrent read-only use once
// constructed, matching the "configurations are shared by reference
// across threads; no mutation after load" invariant of spec §3.
type Index struct {
	tree *FilterTree
}

// NewIndex builds the filter tree from a parsed configuration list,
// following the algorithm of spec §4.1: reverse the input (so later
// entries win ties), stable-sort by the §3 specificity ordering, then
// insert in order.
func NewIndex(configs []*ServerConfiguration) *Index {
	reversed := make([]*ServerConfiguration, len(configs))
	for i, c := range configs {
		reversed[len(configs)-1-i] = c
	}
	sort.SliceStable(reversed, func(i, j int) bool {
		return compareSpecificity(reversed[i].Filters, reversed[j].Filters) < 0
	})

	tree := newFilterTree()
	for _, cfg := range reversed {
		tree.Insert(cfg)
	}
	return &Index{tree: tree}
}

// Lookup resolves the most specific default configuration for req,
// evaluated against the socket the request arrived on.
func (idx *Index) Lookup(req *http.Request, sock SocketData) *ServerConfiguration {
	data := &ConditionMatchData{Request: req, Socket: sock}
	return idx.tree.Lookup(req.Host, req.URL.Path, sock, data)
}

// LookupError resolves the most specific configuration whose
// error-handler filter matches status, for the error-dispatch path of
// spec §4.2.
func (idx *Index) LookupError(req *http.Request, sock SocketData, status uint16) *ServerConfiguration {
	data := &ConditionMatchData{Request: req, Socket: sock}
	return idx.tree.LookupErrorHandler(req.Host, req.URL.Path, sock, data, status)
}

// HostConfigurations returns the deduplicated host-configuration vector
// used by the TLS/ACME engine to enumerate domains at startup (spec
// §4.1).
func (idx *Index) HostConfigurations() []*ServerConfiguration {
	return idx.tree.HostConfigurations()
}
