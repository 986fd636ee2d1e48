package fl

import "math"

// Criterion decides whether a run may stop before its configured round count.
// previous holds the parameters the last recorded round started from.
type Criterion interface {
	Met(previous []float64, history []RoundRecord) bool
}

// ParameterDelta is met when the L2 norm of the round-over-round parameter
// change drops below Epsilon.
type ParameterDelta struct {
	Epsilon float64
}

func (p ParameterDelta) Met(previous []float64, history []RoundRecord) bool {
	if p.Epsilon <= 0 || len(history) == 0 {
		return false
	}
	last := history[len(history)-1].Parameters
	if len(last) != len(previous) {
		return false
	}

	return L2Distance(previous, last) < p.Epsilon
}

// AccuracyPlateau is met when the averaged global accuracy has not improved
// by more than MinDelta for Patience consecutive rounds. Rounds without
// evaluations are ignored.
type AccuracyPlateau struct {
	Patience int
	MinDelta float64
}

func (a AccuracyPlateau) Met(_ []float64, history []RoundRecord) bool {
	if a.Patience <= 0 {
		return false
	}

	var accs []float64
	for _, r := range history {
		if r.Evaluated() {
			accs = append(accs, r.AvgGlobalAccuracy)
		}
	}
	if len(accs) <= a.Patience {
		return false
	}

	best := accs[0]
	for _, acc := range accs[:len(accs)-a.Patience] {
		best = max(best, acc)
	}
	for _, acc := range accs[len(accs)-a.Patience:] {
		if acc-best > a.MinDelta {
			return false
		}
	}

	return true
}

// AnyOf is met as soon as one of its criteria is met.
type AnyOf []Criterion

func (c AnyOf) Met(previous []float64, history []RoundRecord) bool {
	for _, criterion := range c {
		if criterion.Met(previous, history) {
			return true
		}
	}

	return false
}

// L2Distance returns the Euclidean distance between a and b, which must
// have the same length.
func L2Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return math.Sqrt(sum)
}
