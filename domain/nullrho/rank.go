package nullrho

import "sort"

// RankPair is a value tagged with its position in the ranked vector
type RankPair struct {
	Value float64
	Index int
}

// RankInto writes the 0-based ascending rank of each entry of values into ranks.
// Equal values are ordered by position, so the earlier entry gets the lower rank.
// scratch is reused when it has enough capacity; the (possibly grown) buffer is
// returned for the next call.
func RankInto(ranks []int, values []float64, scratch []RankPair) []RankPair {
	scratch = scratch[:0]
	for i, v := range values {
		scratch = append(scratch, RankPair{Value: v, Index: i})
	}

	sort.Slice(scratch, func(i, j int) bool {
		if scratch[i].Value != scratch[j].Value {
			return scratch[i].Value < scratch[j].Value
		}
		return scratch[i].Index < scratch[j].Index
	})

	for r, p := range scratch {
		ranks[p.Index] = r
	}
	return scratch
}

// Rank returns the 0-based ascending ranks of values
func Rank(values []float64) []int {
	ranks := make([]int, len(values))
	RankInto(ranks, values, make([]RankPair, 0, len(values)))
	return ranks
}
