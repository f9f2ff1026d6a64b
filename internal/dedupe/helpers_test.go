package dedupe

import (
	"time"

	"github.com/tunez/dupes/internal/library"
)

func track(id, title, artist, album string, duration float64) library.Track {
	return library.Track{ID: id, Title: title, Artist: artist, Album: album, Duration: duration}
}

func ids(groups []library.DuplicateGroup) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = g.TrackIDs
	}
	return out
}

// imagine returns two copies of the same recording that differ only in
// casing, whitespace and a two second duration drift.
func imagine() []library.Track {
	a := track("A", "Imagine", "John Lennon", "Imagine", 183)
	a.Bitrate = 320
	a.DateAdded = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	b := track("B", "imagine ", "JOHN LENNON", "Imagine", 185)
	b.Bitrate = 128
	b.DateAdded = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return []library.Track{a, b}
}

// hotelCalifornia returns two tracks whose titles differ by a typo.
func hotelCalifornia() []library.Track {
	return []library.Track{
		track("C", "Hotel California", "Eagles", "Hotel California", 391),
		track("D", "Hotel Califronia", "Eagles", "Hotel California", 430),
	}
}
