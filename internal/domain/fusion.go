package domain

import "sort"

// rrfRankConstant is the k constant in reciprocal rank fusion. 60 is the
// value from the original RRF paper and works well without tuning.
const rrfRankConstant = 60

// FuseRankedIDs merges ranked id lists by reciprocal rank fusion:
// score(id) = sum over lists containing id of 1/(k + rank), rank 1-based.
// Output is sorted by score descending, ties broken by the best rank the id
// achieved in any list, then by id ascending for full determinism.
func FuseRankedIDs(rankings ...[]int64) []int64 {
	scores := make(map[int64]float64)
	bestRank := make(map[int64]int)

	for _, ranking := range rankings {
		for i, id := range ranking {
			rank := i + 1
			scores[id] += 1.0 / float64(rrfRankConstant+rank)
			if prev, seen := bestRank[id]; !seen || rank < prev {
				bestRank[id] = rank
			}
		}
	}

	fused := make([]int64, 0, len(scores))
	for id := range scores {
		fused = append(fused, id)
	}

	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		if bestRank[a] != bestRank[b] {
			return bestRank[a] < bestRank[b]
		}
		return a < b
	})
	return fused
}
