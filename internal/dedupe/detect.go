package dedupe

import (
	"math"

	"github.com/tunez/dupes/internal/library"
)

// Membership thresholds for the non-exact detectors.
const (
	MetadataThreshold         = 0.9
	DurationTolerance         = 2.0 // seconds
	DurationMetadataThreshold = 0.7
	FuzzyThreshold            = 0.8
)

// detector is one duplicate definition. Clustering is greedy and
// single-link-to-seed: a candidate joins a cluster when it matches the
// cluster's first track, regardless of the other members.
type detector struct {
	typ   library.DuplicateType
	match func(seed, candidate library.Track) bool
	score func(members []library.Track) float64
}

var (
	exactDetector    = detector{typ: library.DuplicateExact, match: sameFingerprint, score: exactScore}
	metadataDetector = detector{typ: library.DuplicateMetadata, match: metadataMatch, score: GroupSimilarity}
	durationDetector = detector{typ: library.DuplicateDuration, match: durationMatch, score: GroupSimilarity}
	fuzzyDetector    = detector{typ: library.DuplicateFuzzy, match: fuzzyMatch, score: GroupSimilarity}
)

// detectors run in this order; the reconciler's tie-break depends on it.
var detectors = []detector{exactDetector, metadataDetector, durationDetector, fuzzyDetector}

func sameFingerprint(seed, candidate library.Track) bool {
	return seed.Fingerprint != "" && seed.Fingerprint == candidate.Fingerprint
}

func exactScore([]library.Track) float64 { return 1.0 }

func metadataMatch(seed, candidate library.Track) bool {
	return MetadataSimilarity(seed, candidate) >= MetadataThreshold
}

func durationMatch(seed, candidate library.Track) bool {
	return math.Abs(seed.Duration-candidate.Duration) <= DurationTolerance &&
		MetadataSimilarity(seed, candidate) >= DurationMetadataThreshold
}

func fuzzyMatch(seed, candidate library.Track) bool {
	return FuzzySimilarity(seed, candidate) >= FuzzyThreshold
}

// cluster walks tracks in order. Each unassigned track seeds a cluster and
// pulls in every later unassigned track that matches it.
func cluster(tracks []library.Track, match func(seed, candidate library.Track) bool) [][]library.Track {
	assigned := make([]bool, len(tracks))
	var clusters [][]library.Track
	for i := range tracks {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		members := []library.Track{tracks[i]}
		for j := i + 1; j < len(tracks); j++ {
			if assigned[j] {
				continue
			}
			if match(tracks[i], tracks[j]) {
				members = append(members, tracks[j])
				assigned[j] = true
			}
		}
		if len(members) >= 2 {
			clusters = append(clusters, members)
		}
	}
	return clusters
}

func (d detector) detect(tracks []library.Track, ids IDGenerator) []library.DuplicateGroup {
	clusters := cluster(tracks, d.match)
	groups := make([]library.DuplicateGroup, 0, len(clusters))
	for _, members := range clusters {
		trackIDs := make([]string, len(members))
		for i, t := range members {
			trackIDs[i] = t.ID
		}
		groups = append(groups, library.DuplicateGroup{
			ID:              ids.NewID(),
			TrackIDs:        trackIDs,
			SimilarityScore: d.score(members),
			DuplicateType:   d.typ,
		})
	}
	return groups
}

// DetectExact groups tracks sharing a non-empty fingerprint. Score is 1.0.
func DetectExact(tracks []library.Track, ids IDGenerator) []library.DuplicateGroup {
	return exactDetector.detect(tracks, ids)
}

// DetectMetadata groups tracks whose MetadataSimilarity to the seed is at
// least MetadataThreshold.
func DetectMetadata(tracks []library.Track, ids IDGenerator) []library.DuplicateGroup {
	return metadataDetector.detect(tracks, ids)
}

// DetectDuration groups tracks within DurationTolerance seconds of the seed
// whose MetadataSimilarity is at least DurationMetadataThreshold.
func DetectDuration(tracks []library.Track, ids IDGenerator) []library.DuplicateGroup {
	return durationDetector.detect(tracks, ids)
}

// DetectFuzzy groups tracks whose FuzzySimilarity to the seed is at least
// FuzzyThreshold.
func DetectFuzzy(tracks []library.Track, ids IDGenerator) []library.DuplicateGroup {
	return fuzzyDetector.detect(tracks, ids)
}
