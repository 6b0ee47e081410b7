// Package ferrontls implements the TLS/ACME Engine (spec §4.6 /
// "C3"): certificate issuance and renewal via ACME, on-demand TLS with
// an ask-endpoint gate, and the explicit three-slot per-name challenge
// state the spec requires beyond what certmagic's own cache exposes.
// Grounded on the teacher's modules/caddytls package (its go.mod pulls
// in caddyserver/certmagic and mholt/acmez/v3 directly; its
// ondemand_path_test.go documents the CertificateAllowed ask contract
// this package's OnDemandPermission mirrors).
package ferrontls

import (
	"crypto/tls"
	"sync"
)

// Slot identifies which of the three certificate states spec §4.6
// names for a given SNI name at a point in time.
type Slot int

const (
	SlotCertified   Slot = iota // a fully issued, usable leaf certificate
	SlotTLSALPN01               // a transient self-signed cert used only to complete TLS-ALPN-01
	SlotHTTP01Token             // not a certificate at all; the token served over HTTP-01
)

// NameState holds the three slots for one SNI name. The slots are
// independent: a TLS-ALPN-01 challenge cert or an HTTP-01 token can be
// present alongside a certified cert, and PutCertified clears both
// challenge slots.
type NameState struct {
	Certified    *tls.Certificate
	ALPNChallenge *tls.Certificate
	HTTPToken    string
}

// Store is the concurrent-safe map of SNI name to NameState, the
// in-memory mirror of certmagic's on-disk cache used to serve
// GetCertificate callbacks and the HTTP-01 challenge handler without a
// storage round trip on every handshake.
type Store struct {
	mu    sync.RWMutex
	names map[string]*NameState
}

func NewStore() *Store {
	return &Store{names: map[string]*NameState{}}
}

func (s *Store) state(name string) *NameState {
	s.mu.RLock()
	st, ok := s.names[name]
	s.mu.RUnlock()
	if ok {
		return st
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.names[name]; ok {
		return st
	}
	st = &NameState{}
	s.names[name] = st
	return st
}

// PutCertified installs a fully issued certificate for name, clearing
// any in-progress challenge slots (the name has left the challenge
// phase per the three-slot invariant).
func (s *Store) PutCertified(name string, cert *tls.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[name] = &NameState{Certified: cert}
}

// PutALPNChallenge installs the transient self-signed certificate
// acmez presents during a TLS-ALPN-01 handshake, without disturbing
// any previously certified cert (renewal runs concurrently with
// serving the old cert).
func (s *Store) PutALPNChallenge(name string, cert *tls.Certificate) {
	st := s.state(name)
	s.mu.Lock()
	st.ALPNChallenge = cert
	s.mu.Unlock()
}

func (s *Store) ClearALPNChallenge(name string) {
	st := s.state(name)
	s.mu.Lock()
	st.ALPNChallenge = nil
	s.mu.Unlock()
}

func (s *Store) PutHTTPToken(name, token string) {
	st := s.state(name)
	s.mu.Lock()
	st.HTTPToken = token
	s.mu.Unlock()
}

func (s *Store) ClearHTTPToken(name string) {
	st := s.state(name)
	s.mu.Lock()
	st.HTTPToken = ""
	s.mu.Unlock()
}

// Lookup returns the slot that should answer a TLS handshake for name:
// the ALPN challenge certificate takes priority over a certified one
// when both happen to be present, since a pending handshake asking for
// the acme-tls/1 protocol must be answered with the challenge cert.
func (s *Store) Lookup(name string, wantALPNChallenge bool) (*tls.Certificate, Slot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.names[name]
	if !ok {
		return nil, 0, false
	}
	if wantALPNChallenge && st.ALPNChallenge != nil {
		return st.ALPNChallenge, SlotTLSALPN01, true
	}
	if st.Certified != nil {
		return st.Certified, SlotCertified, true
	}
	return nil, 0, false
}

func (s *Store) HTTPToken(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.names[name]
	if !ok || st.HTTPToken == "" {
		return "", false
	}
	return st.HTTPToken, true
}
