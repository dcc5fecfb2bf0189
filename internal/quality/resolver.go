package quality

// Trial is one quality label the URL resolver should consider, in order.
type Trial struct {
	Label Label
	Code  string
	// Missing marks a label the catalog could not resolve. The resolver
	// records a mapping-miss for it and moves on; no code is fabricated.
	Missing bool
	// Fallback marks a trial whose code is the quality label itself because
	// the catalog resolved nothing at all. The upstream usually rejects
	// these, so the attempt log carries a warning for them.
	Fallback bool
}

// Plan produces the ordered trial sequence for a resolution run: the
// preferred label first, then every label in the degrade order that has not
// appeared yet. Duplicate labels are considered once. Labels without a
// catalog code come back flagged Missing so the caller can record the miss
// without attempting them upstream.
//
// When nothing in the plan resolves against the catalog, the plan is a
// single fallback trial that uses the preferred label literally as the code.
func Plan(preferred Label, degradeOrder []Label, catalog Catalog) []Trial {
	seen := map[Label]bool{}
	candidates := make([]Label, 0, len(degradeOrder)+1)

	for _, label := range append([]Label{preferred}, degradeOrder...) {
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		candidates = append(candidates, label)
	}

	trials := make([]Trial, 0, len(candidates))
	resolved := 0
	for _, label := range candidates {
		code, ok := catalog.Code(label)
		if !ok {
			trials = append(trials, Trial{Label: label, Missing: true})
			continue
		}
		trials = append(trials, Trial{Label: label, Code: code})
		resolved++
	}

	if resolved == 0 {
		return []Trial{{Label: preferred, Code: preferred, Fallback: true}}
	}

	return trials
}
