// Package ferronerrors classifies the error kinds of spec §7 so that
// every layer of the core can decide, by type rather than by string
// matching, whether an error is request-scoped (becomes a status code),
// log-and-continue (TLS/ACME), or process-fatal (config/bind/crypto-init
// at startup only).
package ferronerrors

import "fmt"

// Kind names one of the error domains from spec §7.
type Kind int

const (
	KindConfiguration Kind = iota
	KindBind
	KindTLS
	KindACME
	KindUpstream
	KindModule
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindBind:
		return "bind"
	case KindTLS:
		return "tls"
	case KindACME:
		return "acme"
	case KindUpstream:
		return "upstream"
	case KindModule:
		return "module"
	default:
		return "unknown"
	}
}

// Error is a classified error. Status is the HTTP status the request
// boundary should surface for request-scoped kinds (Upstream, Module); it
// is zero for kinds that never reach a response (Configuration, Bind).
type Error struct {
	Kind    Kind
	Status  int
	Fatal   bool
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Configuration(msg string, err error) *Error {
	return &Error{Kind: KindConfiguration, Fatal: true, Message: msg, Err: err}
}

func Bind(msg string, err error, fatal bool) *Error {
	return &Error{Kind: KindBind, Fatal: fatal, Message: msg, Err: err}
}

func TLS(msg string, err error) *Error {
	return &Error{Kind: KindTLS, Message: msg, Err: err}
}

func ACME(msg string, err error) *Error {
	return &Error{Kind: KindACME, Message: msg, Err: err}
}

// Upstream wraps a reverse-proxy transport failure with the status the
// caller passes in; a zero status becomes 502. It does not inspect err
// to choose a status.
func Upstream(msg string, err error, status int) *Error {
	if status == 0 {
		status = 502
	}
	return &Error{Kind: KindUpstream, Status: status, Message: msg, Err: err}
}

// Module wraps a module-returned error as a 500 unless the module
// specified its own status.
func Module(msg string, err error, status int) *Error {
	if status == 0 {
		status = 500
	}
	return &Error{Kind: KindModule, Status: status, Message: msg, Err: err}
}
