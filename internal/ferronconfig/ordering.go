package ferronconfig

// compareSpecificity implements the seven-rule total order of spec §3
// "Conditions ordering": returns -1 if a is less specific than b, +1 if
// more specific, 0 on a tie (ties are resolved by insertion order by the
// caller, not here).
func compareSpecificity(a, b Filters) int {
	// (1) is_host before non-host
	if c := boolRank(a.IsHost, b.IsHost); c != 0 {
		return c
	}
	// (2) having a port before not
	if c := boolRank(a.HasPort, b.HasPort); c != 0 {
		return c
	}
	// (3) having an IP before not
	if c := boolRank(a.HasIP, b.HasIP); c != 0 {
		return c
	}
	// (4) non-wildcard hostname before wildcard
	if a.HasHostname && b.HasHostname {
		if c := boolRank(!a.HostnameIsWild, !b.HostnameIsWild); c != 0 {
			return c
		}
	} else if c := boolRank(a.HasHostname, b.HasHostname); c != 0 {
		return c
	}
	// (5) more dots in hostname before fewer
	if c := intRank(a.DotCount(), b.DotCount()); c != 0 {
		return c
	}
	// (6) Conditions compared by logical slash count of location prefix
	// then by conditional count
	aSlash, bSlash := a.Conditions.SlashCount(), b.Conditions.SlashCount()
	if c := intRank(aSlash, bSlash); c != 0 {
		return c
	}
	aConds, bConds := condCount(a.Conditions), condCount(b.Conditions)
	if c := intRank(aConds, bConds); c != 0 {
		return c
	}
	// (7) having an error-handler status before not
	aHasEH := a.ErrorHandler.Kind != ErrorHandlerNone
	bHasEH := b.ErrorHandler.Kind != ErrorHandlerNone
	if c := boolRank(aHasEH, bHasEH); c != 0 {
		return c
	}
	return 0
}

func condCount(c *Conditions) int {
	if c == nil {
		return 0
	}
	return len(c.Predicates)
}

// boolRank ranks true above false ("before" in specificity means sorts to
// the more-specific end, which NewIndex's ascending sort.SliceStable
// places later).
func boolRank(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return 1
	}
	return -1
}

func intRank(a, b int) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}
