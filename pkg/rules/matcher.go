package rules

// Decision is the outcome of evaluating rules for one order.
type Decision struct {
	// Carriers holds the eligible carrier ids, preferred ones first.
	Carriers []int64
	// Matched holds the ids of the rules that matched, in evaluation order.
	Matched []int64
}

// Select returns the carriers eligible for the order, in output order.
// Carrier ids referenced by rules but absent from candidates are ignored.
func Select(order OrderContext, candidates []int64, rs []Rule) []int64 {
	return Evaluate(order, candidates, rs).Carriers
}

// Evaluate runs the rules in priority order and resolves allow, deny, add and
// prefer effects. Added carriers always survive a deny.
func Evaluate(order OrderContext, candidates []int64, rs []Rule) Decision {
	known := make(map[int64]struct{}, len(candidates))
	allowed := make(map[int64]struct{}, len(candidates))
	for _, id := range candidates {
		known[id] = struct{}{}
		allowed[id] = struct{}{}
	}
	denied := make(map[int64]struct{})
	forced := make(map[int64]struct{})
	var preference []int64
	seenPref := make(map[int64]struct{})
	var matched []int64

	for _, r := range Sorted(rs) {
		if !r.Active || !r.InScope(order) || !r.Matches(order) {
			continue
		}
		matched = append(matched, r.ID)

		for _, id := range r.Effects.DenyIDs {
			denied[id] = struct{}{}
		}
		for _, id := range r.Effects.AddIDs {
			if _, ok := known[id]; ok {
				forced[id] = struct{}{}
			}
		}
		if len(r.Effects.AllowIDs) > 0 {
			keep := make(map[int64]struct{}, len(r.Effects.AllowIDs))
			for _, id := range r.Effects.AllowIDs {
				keep[id] = struct{}{}
			}
			for id := range allowed {
				_, inAllow := keep[id]
				_, isForced := forced[id]
				if !inAllow && !isForced {
					delete(allowed, id)
				}
			}
		}
		for _, id := range r.Effects.PreferIDs {
			if _, ok := seenPref[id]; ok {
				continue
			}
			seenPref[id] = struct{}{}
			preference = append(preference, id)
		}
	}

	eligible := func(id int64) bool {
		if _, ok := forced[id]; ok {
			return true
		}
		if _, ok := denied[id]; ok {
			return false
		}
		_, ok := allowed[id]
		return ok
	}

	out := make([]int64, 0, len(candidates))
	placed := make(map[int64]struct{}, len(candidates))
	for _, id := range preference {
		if _, ok := known[id]; !ok || !eligible(id) {
			continue
		}
		out = append(out, id)
		placed[id] = struct{}{}
	}
	for _, id := range candidates {
		if _, ok := placed[id]; ok || !eligible(id) {
			continue
		}
		out = append(out, id)
		placed[id] = struct{}{}
	}

	return Decision{Carriers: out, Matched: matched}
}
