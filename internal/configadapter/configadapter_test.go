package configadapter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[[host]]
spec = "example.com:443"

[host.properties]
root = ["/var/www"]
tls = [true]

[[host.location]]
prefix = "/api"

[host.location.properties]
rewrite = ["/backend"]

[[host.error_config]]
status = [404, 500]
`

func TestParseTOMLProducesHostsAndLocations(t *testing.T) {
	doc, err := ParseTOML([]byte(sampleTOML))
	require.NoError(t, err)
	require.Len(t, doc.Hosts, 1)

	h := doc.Hosts[0]
	require.Equal(t, "example.com:443", h.Spec)
	require.Len(t, h.Locations, 1)
	require.Equal(t, "/api", h.Locations[0].Prefix)
	require.Len(t, h.ErrorConfigs, 1)
	require.ElementsMatch(t, []uint16{404, 500}, h.ErrorConfigs[0].Status)

	rootVals, ok := h.Properties["root"]
	require.True(t, ok)
	require.Len(t, rootVals, 1)
	require.Equal(t, "/var/www", rootVals[0].Positional[0].String())
}

const sampleYAML = `
host:
  - spec: "*"
    properties:
      root:
        - "/srv/www"
`

func TestParseYAMLProducesWildcardHost(t *testing.T) {
	doc, err := ParseYAML([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, doc.Hosts, 1)
	require.Equal(t, "*", doc.Hosts[0].Spec)
}
