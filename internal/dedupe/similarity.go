package dedupe

import (
	"math"

	"github.com/tunez/dupes/internal/library"
)

// Field is one of the fixed text fields two tracks are compared on.
type Field int

const (
	FieldTitle Field = iota
	FieldArtist
	FieldAlbum
)

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldArtist:
		return "artist"
	case FieldAlbum:
		return "album"
	default:
		return "unknown"
	}
}

// Value returns the field's raw value on t.
func (f Field) Value(t library.Track) string {
	switch f {
	case FieldTitle:
		return t.Title
	case FieldArtist:
		return t.Artist
	case FieldAlbum:
		return t.Album
	default:
		return ""
	}
}

type weightedField struct {
	field  Field
	weight float64
}

var metadataFields = []weightedField{
	{FieldTitle, 0.4},
	{FieldArtist, 0.3},
	{FieldAlbum, 0.2},
}

var fuzzyFields = []weightedField{
	{FieldTitle, 0.5},
	{FieldArtist, 0.3},
	{FieldAlbum, 0.2},
}

const (
	metadataDurationWeight = 0.1
	// MetadataDurationTolerance is how far apart, in seconds, two durations
	// may be and still count as a metadata match.
	MetadataDurationTolerance = 5.0
)

// MetadataSimilarity scores two tracks by exact normalized equality of
// title, artist and album plus duration proximity. Every weight is counted
// in the denominator whether or not the field is set.
//
// Score and total are accumulated in the same order so rounding cancels:
// a full match is exactly 1.0 and title+artist+album is exactly 0.9.
func MetadataSimilarity(a, b library.Track) float64 {
	var score, total float64
	for _, wf := range metadataFields {
		total += wf.weight
		if Normalize(wf.field.Value(a)) == Normalize(wf.field.Value(b)) {
			score += wf.weight
		}
	}
	total += metadataDurationWeight
	if math.Abs(a.Duration-b.Duration) <= MetadataDurationTolerance {
		score += metadataDurationWeight
	}
	return score / total
}

// FuzzySimilarity scores two tracks by weighted edit-distance similarity
// of their normalized title, artist and album. Duration is ignored.
func FuzzySimilarity(a, b library.Track) float64 {
	var score float64
	for _, wf := range fuzzyFields {
		score += wf.weight * Similarity(Normalize(wf.field.Value(a)), Normalize(wf.field.Value(b)))
	}
	return score
}

// GroupSimilarity is the mean MetadataSimilarity over every unordered pair
// of tracks. Fewer than two tracks score 1.0.
func GroupSimilarity(tracks []library.Track) float64 {
	if len(tracks) < 2 {
		return 1.0
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(tracks); i++ {
		for j := i + 1; j < len(tracks); j++ {
			sum += MetadataSimilarity(tracks[i], tracks[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}
