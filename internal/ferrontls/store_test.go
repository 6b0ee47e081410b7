package ferrontls

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTLSALPN01ChallengePriority exercises the three-slot invariant
// exercised during ACME TLS-ALPN-01 issuance: while a name has a
// pending ALPN challenge certificate, a handshake asking for acme-tls/1
// must receive that cert even though a previously issued, still-valid
// certificate is also present in the store.
func TestTLSALPN01ChallengePriority(t *testing.T) {
	s := NewStore()
	certified := &tls.Certificate{Certificate: [][]byte{[]byte("certified")}}
	s.PutCertified("example.com", certified)

	cert, slot, ok := s.Lookup("example.com", false)
	require.True(t, ok)
	require.Equal(t, SlotCertified, slot)
	require.Same(t, certified, cert)

	challenge := &tls.Certificate{Certificate: [][]byte{[]byte("challenge")}}
	s.PutALPNChallenge("example.com", challenge)

	cert, slot, ok = s.Lookup("example.com", true)
	require.True(t, ok)
	require.Equal(t, SlotTLSALPN01, slot)
	require.Same(t, challenge, cert)

	// Non-ALPN handshakes during the challenge window keep being served
	// the last certified cert, since the two slots coexist.
	cert, slot, ok = s.Lookup("example.com", false)
	require.True(t, ok)
	require.Equal(t, SlotCertified, slot)
	require.Same(t, certified, cert)

	s.ClearALPNChallenge("example.com")
	cert, slot, ok = s.Lookup("example.com", true)
	require.True(t, ok)
	require.Equal(t, SlotCertified, slot, "once the challenge cert is cleared, an ALPN lookup falls back to the certified cert")
	require.Same(t, certified, cert)
}

func TestHTTPTokenLifecycle(t *testing.T) {
	s := NewStore()
	_, ok := s.HTTPToken("example.com")
	require.False(t, ok)

	s.PutHTTPToken("example.com", "tok.keyauth")
	tok, ok := s.HTTPToken("example.com")
	require.True(t, ok)
	require.Equal(t, "tok.keyauth", tok)

	s.ClearHTTPToken("example.com")
	_, ok = s.HTTPToken("example.com")
	require.False(t, ok)
}

func TestAllowlistPermission(t *testing.T) {
	p := &AllowlistPermission{Names: map[string]bool{"example.com": true}}
	require.NoError(t, p.CertificateAllowed(nil, "example.com"))
	require.Error(t, p.CertificateAllowed(nil, "evil.example"))
}
