package ferronconfig

import (
	"net"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ferronweb/ferron-core/internal/placeholders"
)

// SocketData carries the per-connection facts a conditional may need
// beyond the request itself (spec §4.1 ConditionMatchData).
type SocketData struct {
	LocalPort   uint16
	LocalIP     net.IP
	RemoteIP    net.IP
	IsLocalhost bool
}

// ConditionMatchData bundles a request, its socket, and the mutable
// constant scratch space threaded through one lookup walk (spec §4.1
// invariant (c): SetConstant always matches but records a constant
// available to later predicates in the same path).
type ConditionMatchData struct {
	Request *http.Request
	Socket  SocketData
	Scratch map[string]string
}

func (d *ConditionMatchData) placeholderData() placeholders.Data {
	ip := ""
	if d.Socket.RemoteIP != nil {
		ip = d.Socket.RemoteIP.String()
	}
	return placeholders.Data{Request: d.Request, ClientIP: ip, Constants: d.Scratch}
}

// Evaluate runs one conditional predicate against match data, returning
// whether it matches. Evaluation is synchronous and deterministic given
// the same request and initial constant state (spec §4.1 invariant (c)).
func Evaluate(cond ConditionalData, data *ConditionMatchData) (bool, error) {
	switch c := cond.(type) {
	case IsRemoteIP:
		return c.Blocks.Contains(data.Socket.RemoteIP), nil
	case IsNotRemoteIP:
		return !c.Blocks.Contains(data.Socket.RemoteIP), nil
	case IsForwardedFor:
		return matchForwardedFor(c.Blocks, data), nil
	case IsNotForwardedFor:
		return !matchForwardedFor(c.Blocks, data), nil
	case IsEqual:
		a := placeholders.Expand(c.A, data.placeholderData())
		b := placeholders.Expand(c.B, data.placeholderData())
		return a == b, nil
	case IsNotEqual:
		a := placeholders.Expand(c.A, data.placeholderData())
		b := placeholders.Expand(c.B, data.placeholderData())
		return a != b, nil
	case IsRegex:
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return false, err
		}
		a := placeholders.Expand(c.Template, data.placeholderData())
		return re.MatchString(a), nil
	case IsNotRegex:
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return false, err
		}
		a := placeholders.Expand(c.Template, data.placeholderData())
		return !re.MatchString(a), nil
	case IsCEL:
		return evalCEL(c.Engine, data)
	case SetConstant:
		if data.Scratch == nil {
			data.Scratch = map[string]string{}
		}
		data.Scratch[c.Name] = placeholders.Expand(c.Value, data.placeholderData())
		return true, nil
	case IsLanguage:
		return matchLanguage(c.Tag, data.Request), nil
	default:
		return false, nil
	}
}

func matchForwardedFor(blocks *IpBlockList, data *ConditionMatchData) bool {
	if data.Request == nil {
		return false
	}
	xff := data.Request.Header.Get("X-Forwarded-For")
	if xff == "" {
		return false
	}
	for _, part := range strings.Split(xff, ",") {
		ip := net.ParseIP(strings.TrimSpace(part))
		if ip != nil && blocks.Contains(ip) {
			return true
		}
	}
	return false
}

func evalCEL(engine CELEngine, data *ConditionMatchData) (bool, error) {
	if engine == nil {
		return false, nil
	}
	input := map[string]any{
		"method":   "",
		"protocol": "HTTP/1.1",
		"uri":      "",
		"headers":  map[string][]string{},
		"socket_data": map[string]any{
			"local_port":   data.Socket.LocalPort,
			"remote_ip":    ipString(data.Socket.RemoteIP),
			"is_localhost": data.Socket.IsLocalhost,
		},
		"constants": copyScratch(data.Scratch),
	}
	if data.Request != nil {
		input["method"] = data.Request.Method
		input["uri"] = data.Request.URL.RequestURI()
		input["protocol"] = data.Request.Proto
		input["headers"] = map[string][]string(data.Request.Header)
	}
	return engine.Eval(input)
}

func copyScratch(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

// LANGUAGES lists supported language tags. matchLanguage does not
// consult it: an IsLanguage predicate matches when any Accept-Language
// entry, or that entry's base language ("en" for "en-US"), equals the
// predicate's tag, compared case-insensitively.
var LANGUAGES = []string{}

type langQuality struct {
	tag     string
	quality float64
}

func matchLanguage(tag string, r *http.Request) bool {
	if r == nil {
		return false
	}
	entries := parseAcceptLanguage(r.Header.Get("Accept-Language"))
	for _, e := range entries {
		if languageMatches(e.tag, tag) {
			return true
		}
		if base, ok := baseLanguage(e.tag); ok && languageMatches(base, tag) {
			return true
		}
	}
	return false
}

func languageMatches(a, want string) bool {
	return strings.EqualFold(a, want)
}

func baseLanguage(tag string) (string, bool) {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i], true
	}
	return "", false
}

func parseAcceptLanguage(header string) []langQuality {
	if header == "" {
		return nil
	}
	var out []langQuality
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tag := part
		q := 1.0
		if i := strings.Index(part, ";q="); i >= 0 {
			tag = strings.TrimSpace(part[:i])
			if parsed, err := strconv.ParseFloat(part[i+3:], 64); err == nil {
				q = parsed
			}
		}
		out = append(out, langQuality{tag: tag, quality: q})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].quality > out[j].quality })
	return out
}
