package ui

import (
	"fmt"
	"strings"

	"github.com/tunez/dupes/internal/library"
)

// ReportEntry is one duplicate group together with its member tracks and
// the suggested keeper.
type ReportEntry struct {
	Group          library.DuplicateGroup    `json:"group"`
	Tracks         []library.Track           `json:"tracks"`
	Recommendation library.RecommendedAction `json:"recommendation"`
}

type Report struct {
	Entries []ReportEntry `json:"entries"`
}

// RecommendFunc suggests a keeper for a group.
type RecommendFunc func(group *library.DuplicateGroup, tracks []library.Track) library.RecommendedAction

// BuildReport joins groups with their tracks, in group order. Member ids
// with no matching track are left out of Tracks. recommend may be nil.
func BuildReport(groups []library.DuplicateGroup, tracks []library.Track, recommend RecommendFunc) Report {
	byID := make(map[string]library.Track, len(tracks))
	for _, t := range tracks {
		byID[t.ID] = t
	}

	report := Report{Entries: make([]ReportEntry, 0, len(groups))}
	for i := range groups {
		g := groups[i]
		entry := ReportEntry{Group: g, Tracks: make([]library.Track, 0, len(g.TrackIDs))}
		for _, id := range g.TrackIDs {
			if t, ok := byID[id]; ok {
				entry.Tracks = append(entry.Tracks, t)
			}
		}
		if recommend != nil {
			entry.Recommendation = recommend(&g, tracks)
		}
		report.Entries = append(report.Entries, entry)
	}
	return report
}

// Keeper returns the track id the entry marks as the one to keep: the
// stored choice for resolved groups, otherwise the recommendation.
func (e ReportEntry) Keeper() string {
	if e.Group.Resolved && e.Group.PreferredTrackID != "" {
		return e.Group.PreferredTrackID
	}
	return e.Recommendation.RecommendedTrackID
}

// RenderReport formats report for a terminal using theme.
func RenderReport(theme Theme, report Report) string {
	if len(report.Entries) == 0 {
		return theme.Dim.Render("No duplicates found.") + "\n"
	}

	var b strings.Builder
	b.WriteString(theme.Header.Render(fmt.Sprintf("Duplicate groups: %d", len(report.Entries))))
	b.WriteString("\n")
	rule := theme.Rule.Render(strings.Repeat("─", 40))

	for _, e := range report.Entries {
		b.WriteString(rule)
		b.WriteString("\n")

		b.WriteString(theme.Group.Render(fmt.Sprintf("[%s]", e.Group.DuplicateType)))
		b.WriteString(" ")
		b.WriteString(theme.Score.Render(fmt.Sprintf("%.2f", e.Group.SimilarityScore)))
		b.WriteString(" ")
		b.WriteString(theme.Dim.Render(e.Group.ID))
		if e.Group.Resolved {
			b.WriteString(" ")
			b.WriteString(theme.Resolved.Render("(resolved)"))
		}
		b.WriteString("\n")

		keeper := e.Keeper()
		for _, t := range e.Tracks {
			line := trackLine(t)
			if t.ID == keeper {
				b.WriteString("  * ")
				b.WriteString(theme.Keeper.Render(line))
			} else {
				b.WriteString("    ")
				b.WriteString(theme.Track.Render(line))
			}
			b.WriteString("\n")
		}

		if rec := e.Recommendation; rec.Action != "" {
			style := theme.Action
			if !rec.Action.Automatic() {
				style = theme.Review
			}
			b.WriteString("  ")
			b.WriteString(style.Render(fmt.Sprintf("%s: %s", rec.Action, rec.Reason)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func trackLine(t library.Track) string {
	return fmt.Sprintf("%s - %s [%s] %s %s %d plays",
		t.Artist, t.Title, t.Album, formatDuration(t.Duration), formatBitrate(t.Bitrate), t.PlayCount)
}

func formatDuration(secs float64) string {
	if secs <= 0 {
		return "-:--"
	}
	total := int(secs + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func formatBitrate(kbps int) string {
	if kbps <= 0 {
		return "? kbps"
	}
	return fmt.Sprintf("%d kbps", kbps)
}
