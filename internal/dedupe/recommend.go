package dedupe

import (
	"fmt"

	"github.com/tunez/dupes/internal/library"
)

// AutoResolveThreshold is the group score from which a non-exact group is
// resolved by play count or recency instead of by hand.
const AutoResolveThreshold = 0.95

// Recommend suggests which member of group to keep. tracks may hold more
// than the group's members; only members are considered, in the order they
// appear in tracks. Missing or unmatched input yields manual_review.
func Recommend(group *library.DuplicateGroup, tracks []library.Track) library.RecommendedAction {
	if group == nil || len(group.TrackIDs) == 0 {
		return manualReview("group has no tracks")
	}
	if len(tracks) == 0 {
		return manualReview("no track data available")
	}

	members := make(map[string]bool, len(group.TrackIDs))
	for _, id := range group.TrackIDs {
		members[id] = true
	}
	var groupTracks []library.Track
	for _, t := range tracks {
		if members[t.ID] {
			groupTracks = append(groupTracks, t)
		}
	}
	if len(groupTracks) == 0 {
		return manualReview("none of the group's tracks were found")
	}

	if group.DuplicateType == library.DuplicateExact {
		best := highestBitrate(groupTracks)
		quality := "unknown"
		if best.Bitrate > 0 {
			quality = fmt.Sprintf("%d kbps", best.Bitrate)
		}
		return library.RecommendedAction{
			Action:             library.ActionKeepHighestQuality,
			RecommendedTrackID: best.ID,
			Reason:             fmt.Sprintf("identical audio, keep highest bitrate (%s)", quality),
		}
	}

	if group.SimilarityScore >= AutoResolveThreshold {
		if best := mostPlayed(groupTracks); best.PlayCount > 0 {
			return library.RecommendedAction{
				Action:             library.ActionKeepMostPlayed,
				RecommendedTrackID: best.ID,
				Reason:             fmt.Sprintf("keep most played version (%d plays)", best.PlayCount),
			}
		}
		return library.RecommendedAction{
			Action:             library.ActionKeepNewest,
			RecommendedTrackID: newest(groupTracks).ID,
			Reason:             "keep most recently added version",
		}
	}

	return manualReview("similarity too low for automatic resolution")
}

func manualReview(reason string) library.RecommendedAction {
	return library.RecommendedAction{Action: library.ActionManualReview, Reason: reason}
}

// The pickers below keep the first track on ties: only a strictly better
// track replaces the running best.

func highestBitrate(tracks []library.Track) library.Track {
	best := tracks[0]
	for _, t := range tracks[1:] {
		if t.Bitrate > best.Bitrate {
			best = t
		}
	}
	return best
}

func mostPlayed(tracks []library.Track) library.Track {
	best := tracks[0]
	for _, t := range tracks[1:] {
		if t.PlayCount > best.PlayCount {
			best = t
		}
	}
	return best
}

func newest(tracks []library.Track) library.Track {
	best := tracks[0]
	for _, t := range tracks[1:] {
		if t.DateAdded.After(best.DateAdded) {
			best = t
		}
	}
	return best
}
