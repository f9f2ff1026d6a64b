package library

import "time"

// Track is a single audio file as known to the library index. The
// duplicate engine treats it as read-only.
type Track struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	Duration    float64   `json:"duration"` // seconds
	Bitrate     int       `json:"bitrate"`  // kbps, 0 when unknown
	PlayCount   int       `json:"playCount"`
	DateAdded   time.Time `json:"dateAdded"`
	Fingerprint string    `json:"fingerprint,omitempty"` // content hash, empty when absent
	Path        string    `json:"path,omitempty"`
}

type DuplicateType string

const (
	DuplicateExact    DuplicateType = "exact"
	DuplicateMetadata DuplicateType = "metadata"
	DuplicateDuration DuplicateType = "duration"
	DuplicateFuzzy    DuplicateType = "fuzzy"
)

// Valid reports whether t is one of the known duplicate types.
func (t DuplicateType) Valid() bool {
	switch t {
	case DuplicateExact, DuplicateMetadata, DuplicateDuration, DuplicateFuzzy:
		return true
	}
	return false
}

// DuplicateGroup is a set of tracks considered copies of each other.
// Groups come out of detection unresolved; Resolved and PreferredTrackID
// are written back later by whoever picks the keeper.
type DuplicateGroup struct {
	ID               string        `json:"id"`
	TrackIDs         []string      `json:"trackIds"`
	SimilarityScore  float64       `json:"similarityScore"`
	DuplicateType    DuplicateType `json:"duplicateType"`
	Resolved         bool          `json:"resolved"`
	PreferredTrackID string        `json:"preferredTrackId,omitempty"`
}

// Contains reports whether trackID is a member of the group.
func (g DuplicateGroup) Contains(trackID string) bool {
	for _, id := range g.TrackIDs {
		if id == trackID {
			return true
		}
	}
	return false
}

type Action string

const (
	ActionKeepHighestQuality Action = "keep_highest_quality"
	ActionKeepMostPlayed     Action = "keep_most_played"
	ActionKeepNewest         Action = "keep_newest"
	ActionManualReview       Action = "manual_review"
)

// Automatic reports whether the action can be applied without a human.
func (a Action) Automatic() bool {
	return a == ActionKeepHighestQuality || a == ActionKeepMostPlayed || a == ActionKeepNewest
}

type RecommendedAction struct {
	Action             Action `json:"action"`
	RecommendedTrackID string `json:"recommendedTrackId,omitempty"`
	Reason             string `json:"reason"`
}
