package ferronconfig

import (
	"fmt"
	"reflect"
	"strings"
)

// ErrorHandlerStatusLookup is the per-node result table of spec §3: a
// default (non-error) configuration, a catchall error-handler
// configuration, and status-specific error-handler configurations.
type ErrorHandlerStatusLookup struct {
	Default  *ServerConfiguration
	Catchall *ServerConfiguration
	ByStatus map[uint16]*ServerConfiguration

	// defaultExplicit distinguishes an inherited (seeded) Default from
	// one explicitly claimed by a configuration inserted at this exact
	// node, so that the first configuration to claim it (in
	// reversed+sorted processing order, i.e. the last one in original
	// insertion order) wins ties, per spec §4.1/§3.
	defaultExplicit bool
}

func newLookup() *ErrorHandlerStatusLookup {
	return &ErrorHandlerStatusLookup{ByStatus: map[uint16]*ServerConfiguration{}}
}

// Get returns the configuration for a specific error status, falling
// back to the catchall entry (spec §4.1 "lookup.get(code)").
func (l *ErrorHandlerStatusLookup) Get(code uint16) *ServerConfiguration {
	if l == nil {
		return nil
	}
	if cfg, ok := l.ByStatus[code]; ok {
		return cfg
	}
	return l.Catchall
}

// GetDefault returns the non-error configuration (spec §4.1
// "lookup.get_default()").
func (l *ErrorHandlerStatusLookup) GetDefault() *ServerConfiguration {
	if l == nil {
		return nil
	}
	return l.Default
}

type edgeKind int

const (
	edgeIsHost edgeKind = iota
	edgePort
	edgeIsLocalhost
	edgeIPOctet
	edgeHostLevel
	edgeHostLevelWildcard
	edgeLocation
)

type edgeKey struct {
	kind  edgeKind
	str   string
	num   int
}

func (e edgeKey) mapKey() string {
	switch e.kind {
	case edgeIsHost:
		return "host"
	case edgePort:
		return fmt.Sprintf("port:%d", e.num)
	case edgeIsLocalhost:
		return "localhost"
	case edgeIPOctet:
		return fmt.Sprintf("oct:%d", e.num)
	case edgeHostLevel:
		return "lvl:" + strings.ToLower(e.str)
	case edgeHostLevelWildcard:
		return "lvlwild"
	case edgeLocation:
		return "loc:" + e.str
	default:
		return ""
	}
}

type condChild struct {
	cond  ConditionalData
	child *trieNode
}

type trieNode struct {
	children    map[string]*trieNode
	conditional []*condChild
	lookup      *ErrorHandlerStatusLookup
}

func newTrieNode() *trieNode {
	return &trieNode{children: map[string]*trieNode{}}
}

func (n *trieNode) getOrCreateChild(k edgeKey) *trieNode {
	key := k.mapKey()
	if c, ok := n.children[key]; ok {
		return c
	}
	c := newTrieNode()
	n.children[key] = c
	return c
}

func (n *trieNode) getOrCreateConditional(cond ConditionalData) *trieNode {
	for _, cc := range n.conditional {
		if reflect.DeepEqual(cc.cond, cond) {
			return cc.child
		}
	}
	c := newTrieNode()
	n.conditional = append(n.conditional, &condChild{cond: cond, child: c})
	return c
}

// FilterTree is the indexed configuration structure of spec §3/§4.1.
type FilterTree struct {
	root       *trieNode
	hostConfig map[string]*ServerConfiguration // dedup (hostname,port,ip) for TLS enumeration
	hostOrder  []string
}

func newFilterTree() *FilterTree {
	return &FilterTree{root: newTrieNode(), hostConfig: map[string]*ServerConfiguration{}}
}

func buildDeterministicKey(f Filters) []edgeKey {
	var keys []edgeKey
	if f.IsHost {
		keys = append(keys, edgeKey{kind: edgeIsHost})
	}
	if f.HasPort {
		keys = append(keys, edgeKey{kind: edgePort, num: int(f.Port)})
	}
	if f.HasIP {
		if f.IP.IsLoopback() {
			keys = append(keys, edgeKey{kind: edgeIsLocalhost})
		} else if v4 := f.IP.To4(); v4 != nil {
			for _, b := range v4 {
				keys = append(keys, edgeKey{kind: edgeIPOctet, num: int(b)})
			}
		} else {
			for _, b := range f.IP.To16() {
				keys = append(keys, edgeKey{kind: edgeIPOctet, num: int(b)})
			}
		}
	}
	if f.HasHostname {
		name := f.Hostname
		if f.HostnameIsWild {
			name = strings.TrimPrefix(name, "*.")
		}
		labels := strings.Split(name, ".")
		for i := len(labels) - 1; i >= 0; i-- {
			if labels[i] == "" {
				continue
			}
			keys = append(keys, edgeKey{kind: edgeHostLevel, str: labels[i]})
		}
		if f.HostnameIsWild {
			keys = append(keys, edgeKey{kind: edgeHostLevelWildcard})
		}
	}
	if f.Conditions != nil && f.Conditions.LocationPrefix != "" {
		for _, seg := range splitLocation(f.Conditions.LocationPrefix) {
			keys = append(keys, edgeKey{kind: edgeLocation, str: seg})
		}
	}
	return keys
}

func splitLocation(prefix string) []string {
	trimmed := strings.Trim(prefix, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Insert adds cfg to the tree (spec §4.1 algorithm). Callers must have
// already reversed+stable-sorted the input list by specificity before
// calling Insert in order.
func (t *FilterTree) Insert(cfg *ServerConfiguration) {
	node := t.root
	var inheritedDefault *ServerConfiguration
	if node.lookup != nil {
		inheritedDefault = node.lookup.Default
	}
	for _, k := range buildDeterministicKey(cfg.Filters) {
		node = node.getOrCreateChild(k)
		if node.lookup != nil && node.lookup.Default != nil {
			inheritedDefault = node.lookup.Default
		}
	}
	if cfg.Filters.Conditions != nil {
		for _, pred := range cfg.Filters.Conditions.Predicates {
			node = node.getOrCreateConditional(pred)
			if node.lookup != nil && node.lookup.Default != nil {
				inheritedDefault = node.lookup.Default
			}
		}
	}

	if node.lookup == nil {
		node.lookup = newLookup()
		// Seed default from nearest ancestor to preserve fallthrough
		// semantics under more specific child nodes (spec §4.1).
		node.lookup.Default = inheritedDefault
	}

	// Callers process configurations in reversed+specificity-sorted
	// order, so the first configuration to explicitly claim a slot at
	// this exact node is the one that was latest in the original input
	// — ties resolve to the latest-inserted entry (spec §3).
	switch cfg.Filters.ErrorHandler.Kind {
	case ErrorHandlerAny:
		if node.lookup.Catchall == nil {
			node.lookup.Catchall = cfg
		}
	case ErrorHandlerStatus:
		if _, exists := node.lookup.ByStatus[cfg.Filters.ErrorHandler.Code]; !exists {
			node.lookup.ByStatus[cfg.Filters.ErrorHandler.Code] = cfg
		}
	default:
		if !node.lookup.defaultExplicit {
			node.lookup.Default = cfg
			node.lookup.defaultExplicit = true
		}
	}

	if cfg.Filters.IsHost && cfg.Filters.HasHostname {
		key := hostDedupKey(cfg.Filters)
		if _, seen := t.hostConfig[key]; !seen {
			t.hostOrder = append(t.hostOrder, key)
		}
		t.hostConfig[key] = cfg
	}
}

func hostDedupKey(f Filters) string {
	ip := ""
	if f.HasIP {
		ip = f.IP.String()
	}
	return fmt.Sprintf("%s|%d|%s", f.Hostname, f.Port, ip)
}

// HostConfigurations returns the deduplicated host-configuration vector
// used for TLS startup enumeration (spec §4.1), in first-seen order.
func (t *FilterTree) HostConfigurations() []*ServerConfiguration {
	out := make([]*ServerConfiguration, 0, len(t.hostOrder))
	for _, k := range t.hostOrder {
		out = append(out, t.hostConfig[k])
	}
	return out
}

func buildLookupKey(req lookupRequest) []edgeKey {
	var keys []edgeKey
	keys = append(keys, edgeKey{kind: edgeIsHost})
	keys = append(keys, edgeKey{kind: edgePort, num: int(req.socket.LocalPort)})
	if req.socket.IsLocalhost {
		keys = append(keys, edgeKey{kind: edgeIsLocalhost})
	} else if req.socket.LocalIP != nil {
		ip := req.socket.LocalIP
		if v4 := ip.To4(); v4 != nil {
			for _, b := range v4 {
				keys = append(keys, edgeKey{kind: edgeIPOctet, num: int(b)})
			}
		} else {
			for _, b := range ip.To16() {
				keys = append(keys, edgeKey{kind: edgeIPOctet, num: int(b)})
			}
		}
	}
	host := req.host
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	if host != "" {
		labels := strings.Split(host, ".")
		for i := len(labels) - 1; i >= 0; i-- {
			if labels[i] == "" {
				continue
			}
			keys = append(keys, edgeKey{kind: edgeHostLevel, str: labels[i]})
		}
	}
	for _, seg := range splitLocation(req.path) {
		keys = append(keys, edgeKey{kind: edgeLocation, str: seg})
	}
	return keys
}

type lookupRequest struct {
	host   string
	path   string
	socket SocketData
}

type searchState struct {
	best      *trieNode
	bestDepth int
}

func (t *FilterTree) search(node *trieNode, keys []edgeKey, idx, depth int, data *ConditionMatchData, st *searchState) {
	if node.lookup != nil && depth >= st.bestDepth {
		st.best = node
		st.bestDepth = depth
	}

	for _, cc := range node.conditional {
		branchData := &ConditionMatchData{Request: data.Request, Socket: data.Socket, Scratch: copyScratch(data.Scratch)}
		ok, err := Evaluate(cc.cond, branchData)
		if err != nil || !ok {
			continue
		}
		t.search(cc.child, keys, idx, depth+1, branchData, st)
	}

	if idx >= len(keys) {
		return
	}
	k := keys[idx]
	switch k.kind {
	case edgeIsHost:
		if child, ok := node.children[k.mapKey()]; ok {
			t.search(child, keys, idx+1, depth+1, data, st)
		}
		// a non-host configuration ("*", port-only, global) is also a
		// valid match for any request; allow the walk to continue
		// without consuming the IsHostConfiguration edge.
		t.search(node, keys, idx+1, depth, data, st)
	case edgeHostLevel:
		if child, ok := node.children[k.mapKey()]; ok {
			t.search(child, keys, idx+1, depth+1, data, st)
		}
		if wc, ok := node.children[(edgeKey{kind: edgeHostLevelWildcard}).mapKey()]; ok {
			j := idx
			for j < len(keys) && keys[j].kind == edgeHostLevel {
				j++
			}
			t.search(wc, keys, j, depth+1, data, st)
		}
	default:
		if child, ok := node.children[k.mapKey()]; ok {
			t.search(child, keys, idx+1, depth+1, data, st)
		}
		// port, IP octet, and location-prefix edges are all optional
		// in a stored filter (e.g. a host config with no port
		// restriction never inserted a port child), while the lookup
		// key always carries one; skip it and keep matching the rest
		// of the key against this same node, mirroring the edgeIsHost
		// fallback above.
		t.search(node, keys, idx+1, depth, data, st)
	}
}

// Lookup returns the most specific matching configuration for a request
// (spec §4.1, §8 invariant 1).
func (t *FilterTree) Lookup(host, path string, sock SocketData, httpData *ConditionMatchData) *ServerConfiguration {
	l := t.lookupTable(host, path, sock, httpData)
	return l.GetDefault()
}

// LookupErrorHandler returns the configuration dispatching for status on
// the most specific node matching the request (spec §4.1).
func (t *FilterTree) LookupErrorHandler(host, path string, sock SocketData, httpData *ConditionMatchData, status uint16) *ServerConfiguration {
	l := t.lookupTable(host, path, sock, httpData)
	return l.Get(status)
}

func (t *FilterTree) lookupTable(host, path string, sock SocketData, httpData *ConditionMatchData) *ErrorHandlerStatusLookup {
	keys := buildLookupKey(lookupRequest{host: host, path: path, socket: sock})
	st := &searchState{bestDepth: -1}
	data := httpData
	if data == nil {
		data = &ConditionMatchData{Socket: sock}
	}
	t.search(t.root, keys, 0, 0, data, st)
	if st.best == nil {
		return newLookup()
	}
	return st.best.lookup
}
