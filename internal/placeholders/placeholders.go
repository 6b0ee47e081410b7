// Package placeholders implements the {name} template substitution used by
// conditionals (§3 ConditionalData). The rewrite engine and the
// reverse-proxy header operations do not expand placeholders; their
// values are used literally. Grounded on caddyhttp/httpserver/replacer.go's
// Replacer, adapted from Caddy's {>Header}/{scheme}/{remote} vocabulary to
// the spec's {header:X}/{client_ip}/{scheme} vocabulary.
package placeholders

import (
	"net/http"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)(?::([^}]*))?\}`)

// Data bundles everything a template may reference. ClientIP is passed in
// explicitly (rather than derived from RemoteAddr) because reverse-proxy
// modules may rewrite the effective remote address mid-pipeline (spec
// §4.2 rewrite_remote_address).
type Data struct {
	Request   *http.Request
	ClientIP  string
	Scheme    string
	Constants map[string]string
}

// Expand substitutes every {placeholder} in tmpl using data. Unknown
// placeholders expand to the empty string, matching the teacher's
// "emptyValue" convention for missing values.
func Expand(tmpl string, data Data) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := placeholderRe.FindStringSubmatch(match)
		name, arg := sub[1], sub[2]
		return lookup(name, arg, data)
	})
}

func lookup(name, arg string, data Data) string {
	switch name {
	case "header":
		if data.Request == nil {
			return ""
		}
		return data.Request.Header.Get(arg)
	case "client_ip":
		return data.ClientIP
	case "scheme":
		if data.Scheme != "" {
			return data.Scheme
		}
		if data.Request != nil && data.Request.TLS != nil {
			return "https"
		}
		return "http"
	case "host":
		if data.Request == nil {
			return ""
		}
		host := data.Request.Host
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		return host
	case "method":
		if data.Request == nil {
			return ""
		}
		return data.Request.Method
	case "uri":
		if data.Request == nil {
			return ""
		}
		return data.Request.URL.RequestURI()
	case "path":
		if data.Request == nil {
			return ""
		}
		return data.Request.URL.Path
	case "query":
		if data.Request == nil {
			return ""
		}
		return data.Request.URL.RawQuery
	case "constant":
		if data.Constants == nil {
			return ""
		}
		return data.Constants[arg]
	default:
		// Arbitrary {constant_name} form used by SetConstant, looked up
		// directly against the constants map as a fallback.
		if data.Constants != nil {
			if v, ok := data.Constants[name]; ok {
				return v
			}
		}
		return ""
	}
}
