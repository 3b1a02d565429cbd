package planner

import (
	"slices"
)

// Select labels the shortest, safest and balanced routes. routes must be in
// provider order. Ties keep provider order. With three or more routes the
// safest pick moves to the second safest when it is the shortest, and the
// balanced pick moves to the middle input route, or else the cheapest
// unlabeled one, when it repeats either. Routes are compared by Index.
// With one route every slot holds it.
func Select(routes []*ProcessedRoute) (Selection, error) {
	if len(routes) == 0 {
		return Selection{}, ErrNoProcessableRoutes
	}

	byDistance := slices.Clone(routes)
	slices.SortStableFunc(byDistance, func(a, b *ProcessedRoute) int {
		return compareFloat(a.DistanceMeters, b.DistanceMeters)
	})

	bySafety := slices.Clone(routes)
	slices.SortStableFunc(bySafety, func(a, b *ProcessedRoute) int {
		return compareFloat(b.AvgISC, a.AvgISC)
	})

	byCost := slices.Clone(routes)
	slices.SortStableFunc(byCost, func(a, b *ProcessedRoute) int {
		return compareFloat(a.Cost, b.Cost)
	})

	sel := Selection{
		Shortest: byDistance[0],
		Safest:   bySafety[0],
		Balanced: byCost[0],
	}

	if len(routes) >= 3 {
		if sel.Safest.Index == sel.Shortest.Index {
			sel.Safest = bySafety[1]
		}
		if sel.taken(sel.Balanced) {
			sel.Balanced = routes[len(routes)/2]
		}
		// The midpoint can collide as well; take the cheapest free route.
		if sel.taken(sel.Balanced) {
			for _, r := range byCost {
				if !sel.taken(r) {
					sel.Balanced = r
					break
				}
			}
		}
	}

	return sel, nil
}

// taken reports whether r already fills the shortest or safest slot.
func (s Selection) taken(r *ProcessedRoute) bool {
	return r.Index == s.Shortest.Index || r.Index == s.Safest.Index
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
