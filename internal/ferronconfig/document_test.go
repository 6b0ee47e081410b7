package ferronconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildDerivesHostAndLocationFilters(t *testing.T) {
	doc := &ParsedDocument{
		Hosts: []DocumentHost{
			{
				Spec: "example.com:443",
				Properties: map[string][]DocumentValue{
					"root": {{Positional: []Value{StringValue("/var/www")}}},
				},
				Locations: []DocumentLocation{
					{Prefix: "/api", Properties: map[string][]DocumentValue{}},
				},
			},
			{Spec: "*"},
		},
	}

	configs := Build(doc)
	require.Len(t, configs, 3)

	host := configs[0]
	require.True(t, host.Filters.IsHost)
	require.Equal(t, "example.com", host.Filters.Hostname)
	require.Equal(t, uint16(443), host.Filters.Port)
	root, ok := host.Get("root")
	require.True(t, ok)
	require.Equal(t, "/var/www", root.Positional[0].String())

	loc := configs[1]
	require.NotNil(t, loc.Filters.Conditions)
	require.Equal(t, "/api", loc.Filters.Conditions.LocationPrefix)

	wildcard := configs[2]
	require.False(t, wildcard.Filters.IsHost)
	require.False(t, wildcard.Filters.HasHostname)
}
