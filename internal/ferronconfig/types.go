// Package ferronconfig implements the Configuration Index (spec §3, §4.1):
// it compiles a parsed configuration document into a specificity-sorted
// filter tree and answers per-request lookups. Grounded on the
// teacher's caddyhttp/httpserver/siteconfig.go + condition.go (per-site
// config records gated by matchers) and modules.go (module references
// kept as opaque, reference-counted handles rather than concrete types,
// so this package never imports the pipeline package that implements
// them).
package ferronconfig

import "fmt"

// Value is a tagged configuration scalar (spec §3(a)).
type Value struct {
	kind valueKind
	str  string
	i    int64
	f    float64
	b    bool
}

type valueKind int

const (
	valueNull valueKind = iota
	valueString
	valueInt
	valueFloat
	valueBool
)

func NullValue() Value          { return Value{kind: valueNull} }
func StringValue(s string) Value { return Value{kind: valueString, str: s} }
func IntValue(i int64) Value     { return Value{kind: valueInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: valueFloat, f: f} }
func BoolValue(b bool) Value     { return Value{kind: valueBool, b: b} }

func (v Value) IsNull() bool { return v.kind == valueNull }

func (v Value) String() string {
	switch v.kind {
	case valueString:
		return v.str
	case valueInt:
		return fmt.Sprintf("%d", v.i)
	case valueFloat:
		return fmt.Sprintf("%g", v.f)
	case valueBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func (v Value) Int() (int64, bool)     { return v.i, v.kind == valueInt }
func (v Value) Float() (float64, bool) { return v.f, v.kind == valueFloat }
func (v Value) Bool() (bool, bool)     { return v.b, v.kind == valueBool }

// Entry is one positional+named property entry (spec §3(a)).
type Entry struct {
	Positional []Value
	Named      map[string]Value
}

// Entries is an ordered sequence of Entry values for one property name.
type Entries []Entry

// ModuleRef is an opaque handle to a loaded module instance. The pipeline
// package's ModuleHandle does not implement it (it has no ModuleName
// method), and nothing in this repository populates Modules; ferronconfig never
// looks inside it, matching the spec's "resolved list of loaded modules"
// being carried without the index needing to know their shape.
type ModuleRef interface {
	ModuleName() string
}

// ServerConfiguration is the immutable record of spec §3. Once returned
// from an Index, instances are shared by reference across goroutines and
// never mutated.
type ServerConfiguration struct {
	Entries map[string]Entries
	Filters Filters
	Modules []ModuleRef
}

// Get returns the first entry for name, if any, mirroring a common
// accessor pattern in the teacher's siteconfig.go.
func (c *ServerConfiguration) Get(name string) (Entry, bool) {
	entries, ok := c.Entries[name]
	if !ok || len(entries) == 0 {
		return Entry{}, false
	}
	return entries[0], true
}
