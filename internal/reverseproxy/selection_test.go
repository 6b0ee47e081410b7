package reverseproxy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundRobinCyclesInOrder(t *testing.T) {
	var rr RoundRobin
	live := []int{2, 5, 7}
	backends := make([]*Backend, 8)
	got := []int{rr.Select(live, backends), rr.Select(live, backends), rr.Select(live, backends), rr.Select(live, backends)}
	require.Equal(t, []int{2, 5, 7, 2}, got)
}

func TestLeastConnectionsPicksFewestInFlight(t *testing.T) {
	backends := []*Backend{{}, {}, {}}
	backends[0].beginRequest()
	backends[0].beginRequest()
	backends[2].beginRequest()

	var lc LeastConnections
	got := lc.Select([]int{0, 1, 2}, backends)
	require.Equal(t, 1, got, "backend 1 has zero in-flight requests")
}

func TestLeastConnectionsTieBreaksOnLowestIndex(t *testing.T) {
	backends := []*Backend{{}, {}}
	var lc LeastConnections
	got := lc.Select([]int{1, 0}, backends)
	require.Equal(t, 0, got, "lowest index wins ties since both have zero in-flight")
}

func TestTwoRandomChoicesOnlyChoosesLiveIndex(t *testing.T) {
	var trc TwoRandomChoices
	backends := []*Backend{{}, {}, {}}
	got := trc.Select([]int{2}, backends)
	require.Equal(t, 2, got)
}
