package records

import "time"

// Candidate is one (weight, reps) lift considered for a personal record.
type Candidate struct {
	WeightKg float64
	Reps     int
	Date     time.Time
}

// Compare imposes a total order over candidates: strictly greater
// weight always wins regardless of reps, and reps break ties only when
// the weights are exactly equal. It returns -1, 0 or 1.
func Compare(a, b Candidate) int {
	switch {
	case a.WeightKg > b.WeightKg:
		return 1
	case a.WeightKg < b.WeightKg:
		return -1
	case a.Reps > b.Reps:
		return 1
	case a.Reps < b.Reps:
		return -1
	default:
		return 0
	}
}

// SelectBest returns the maximal candidate under Compare. Ties keep the
// first-seen candidate. The boolean is false for empty input.
func SelectBest(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if Compare(candidate, best) > 0 {
			best = candidate
		}
	}
	return best, true
}
