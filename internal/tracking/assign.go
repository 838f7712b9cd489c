package tracking

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"
)

// Match is the association result for one track: either the index of an
// observation or unmatched. The zero value is unmatched.
type Match struct {
	index int
	ok    bool
}

// Matched returns a Match pointing at observation i.
func Matched(i int) Match { return Match{index: i, ok: true} }

// Unmatched returns a Match with no observation.
func Unmatched() Match { return Match{} }

// Observation returns the matched observation index and true, or 0 and
// false when unmatched.
func (m Match) Observation() (int, bool) { return m.index, m.ok }

// IsMatched reports whether the track was matched to an observation.
func (m Match) IsMatched() bool { return m.ok }

// Wire returns the observation index, or -1 when unmatched. Only for
// encodings that need a plain integer (datagrams, SQL).
func (m Match) Wire() int {
	if !m.ok {
		return -1
	}
	return m.index
}

// String renders the observation index or "-".
func (m Match) String() string {
	if !m.ok {
		return "-"
	}
	return strconv.Itoa(m.index)
}

// Assignment is the partial injective pairing between predictions (rows)
// and observations (columns) for one cycle.
type Assignment struct {
	// Matches[i] is the observation matched to prediction i.
	Matches []Match

	observations int
}

// MatchedCount returns the number of matched predictions.
func (a Assignment) MatchedCount() int {
	n := 0
	for _, m := range a.Matches {
		if m.ok {
			n++
		}
	}
	return n
}

// UnmatchedObservations returns, in ascending order, the indices of
// observations no prediction was matched to.
func (a Assignment) UnmatchedObservations() []int {
	used := make([]bool, a.observations)
	for _, m := range a.Matches {
		if m.ok {
			used[m.index] = true
		}
	}
	unmatched := make([]int, 0, a.observations)
	for j, u := range used {
		if !u {
			unmatched = append(unmatched, j)
		}
	}
	return unmatched
}

// GreedyAssign pairs predictions with observations by repeatedly taking the
// globally cheapest remaining cell of the planar Euclidean cost matrix.
//
// Each of the len(predictions) rounds scans the remaining matrix in
// row-major order and keeps the first strict minimum, so ties go to the
// lowest row, then the lowest column. The chosen row and column are then
// set to +Inf. Rows left once every cell is +Inf stay unmatched.
//
// The result is deterministic but not globally optimal.
func GreedyAssign(predictions, observations []r3.Vec) Assignment {
	a := Assignment{
		Matches:      make([]Match, len(predictions)),
		observations: len(observations),
	}
	if len(predictions) == 0 || len(observations) == 0 {
		return a
	}

	cost := costMatrix(predictions, observations)
	for range predictions {
		row, col, ok := minCell(cost)
		if !ok {
			break
		}
		a.Matches[row] = Matched(col)
		invalidate(cost, row, col)
	}
	return a
}

// planarDistance is the Euclidean distance in the x-y plane. z is not part
// of the motion model and does not take part in association.
func planarDistance(p, q r3.Vec) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

func costMatrix(predictions, observations []r3.Vec) [][]float64 {
	cost := make([][]float64, len(predictions))
	for i, p := range predictions {
		cost[i] = make([]float64, len(observations))
		for j, o := range observations {
			cost[i][j] = planarDistance(p, o)
		}
	}
	return cost
}

// minCell returns the first strictly smallest finite cell in row-major order.
func minCell(cost [][]float64) (row, col int, ok bool) {
	best := math.Inf(1)
	for i, r := range cost {
		for j, c := range r {
			if c < best {
				best, row, col, ok = c, i, j, true
			}
		}
	}
	return row, col, ok
}

func invalidate(cost [][]float64, row, col int) {
	inf := math.Inf(1)
	for j := range cost[row] {
		cost[row][j] = inf
	}
	for i := range cost {
		cost[i][col] = inf
	}
}
