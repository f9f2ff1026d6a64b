package dedupe

import (
	"sort"

	"github.com/tunez/dupes/internal/library"
)

// Reconcile turns overlapping candidate groups into a track-disjoint list.
// Candidates are ranked by score (stable, so earlier candidates win ties)
// and accepted greedily: a group is kept only if none of its tracks has
// been claimed by an earlier accepted group. Groups are never split.
func Reconcile(candidates []library.DuplicateGroup) []library.DuplicateGroup {
	ranked := make([]library.DuplicateGroup, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SimilarityScore > ranked[j].SimilarityScore
	})

	used := make(map[string]bool)
	accepted := make([]library.DuplicateGroup, 0, len(ranked))
	for _, g := range ranked {
		if claimed(g.TrackIDs, used) {
			continue
		}
		for _, id := range g.TrackIDs {
			used[id] = true
		}
		accepted = append(accepted, g)
	}
	return accepted
}

func claimed(ids []string, used map[string]bool) bool {
	for _, id := range ids {
		if used[id] {
			return true
		}
	}
	return false
}
