package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tunez/dupes/internal/library"
	"github.com/tunez/dupes/internal/store"
	"github.com/tunez/dupes/internal/ui"
)

func id3v1(title, artist, album string) []byte {
	field := func(s string, n int) []byte {
		b := make([]byte, n)
		copy(b, s)
		return b
	}
	var buf bytes.Buffer
	buf.WriteString("TAG")
	buf.Write(field(title, 30))
	buf.Write(field(artist, 30))
	buf.Write(field(album, 30))
	buf.Write(make([]byte, 35))
	return buf.Bytes()
}

type fixture struct {
	music  string
	db     string
	config string
}

// newFixture writes a config and a music folder holding two retagged copies
// of the same audio plus one unrelated file.
func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		music:  filepath.Join(dir, "music"),
		db:     filepath.Join(dir, "index.sqlite"),
		config: filepath.Join(dir, "config.toml"),
	}
	audio := bytes.Repeat([]byte("0123456789abcdef"), 64)
	other := bytes.Repeat([]byte("fedcba9876543210"), 64)
	files := map[string][]byte{
		"a.mp3": append(append([]byte{}, audio...), id3v1("Imagine", "John Lennon", "Imagine")...),
		"b.mp3": append(append([]byte{}, audio...), id3v1("Imagine (2010 Mix)", "Lennon", "Gimme Some Truth")...),
		"c.mp3": append(append([]byte{}, other...), id3v1("Jealous Guy", "John Lennon", "Imagine")...),
	}
	if err := os.MkdirAll(f.music, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(f.music, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := `[library]
roots = ["` + filepath.ToSlash(f.music) + `"]
index_db = "` + filepath.ToSlash(f.db) + `"

[scan]
workers = 2
ffprobe_path = "` + filepath.ToSlash(filepath.Join(dir, "no-ffprobe")) + `"

[log]
level = "error"

[ui]
theme = "nocolor"
`
	if err := os.WriteFile(f.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"LOG_LEVEL", "LOG_FORMAT", "NO_COLOR"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return f
}

func runJSON(t *testing.T, opts options) ui.Report {
	t.Helper()
	opts.json = true
	var out bytes.Buffer
	if err := run(context.Background(), opts, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	var report ui.Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report %q: %v", out.String(), err)
	}
	return report
}

func TestRunScanAndDetect(t *testing.T) {
	f := newFixture(t)
	report := runJSON(t, options{configPath: f.config, scan: true})

	if len(report.Entries) != 1 {
		t.Fatalf("expected 1 group, got %+v", report.Entries)
	}
	e := report.Entries[0]
	if e.Group.DuplicateType != library.DuplicateExact || e.Group.SimilarityScore != 1 {
		t.Errorf("group = %+v", e.Group)
	}
	if len(e.Tracks) != 2 || e.Tracks[0].Title != "Imagine" || e.Tracks[1].Title != "Imagine (2010 Mix)" {
		t.Errorf("tracks = %+v", e.Tracks)
	}
	if e.Recommendation.Action != library.ActionKeepHighestQuality || e.Recommendation.RecommendedTrackID != e.Tracks[0].ID {
		t.Errorf("recommendation = %+v", e.Recommendation)
	}

	// Detection without -scan works from the stored index.
	again := runJSON(t, options{configPath: f.config})
	if len(again.Entries) != 1 || again.Entries[0].Group.ID == e.Group.ID {
		t.Errorf("expected one freshly detected group, got %+v", again.Entries)
	}
}

func TestRunApply(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer
	if err := run(context.Background(), options{configPath: f.config, scan: true, apply: true}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Applied 1 of 1 recommendations") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	st, err := store.NewStore(f.db)
	if err != nil {
		t.Fatal(err)
	}
	groups, err := st.Groups(context.Background(), true)
	st.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || !groups[0].Resolved || groups[0].PreferredTrackID == "" {
		t.Fatalf("expected one resolved group, got %+v", groups)
	}

	// Settled duplicates are not reported again.
	report := runJSON(t, options{configPath: f.config})
	if len(report.Entries) != 0 {
		t.Errorf("resolved group reported again: %+v", report.Entries)
	}
}

func TestRunResolve(t *testing.T) {
	f := newFixture(t)
	report := runJSON(t, options{configPath: f.config, scan: true})
	if len(report.Entries) != 1 {
		t.Fatalf("expected 1 group, got %d", len(report.Entries))
	}
	g := report.Entries[0].Group
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, options{configPath: f.config, resolve: g.ID, keep: g.TrackIDs[1]}, &out); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(out.String(), "Resolved group "+g.ID) {
		t.Errorf("unexpected output %q", out.String())
	}

	tests := []struct {
		name string
		opts options
	}{
		{"missing keep", options{configPath: f.config, resolve: g.ID}},
		{"unknown group", options{configPath: f.config, resolve: "nope", keep: g.TrackIDs[0]}},
		{"not a member", options{configPath: f.config, resolve: g.ID, keep: "stranger"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(ctx, tt.opts, &bytes.Buffer{}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRunTextReport(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer
	if err := run(context.Background(), options{configPath: f.config, scan: true}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"Duplicate groups: 1", "[exact]", "keep_highest_quality"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunRemovesDeletedFiles(t *testing.T) {
	f := newFixture(t)
	runJSON(t, options{configPath: f.config, scan: true})

	if err := os.Remove(filepath.Join(f.music, "b.mp3")); err != nil {
		t.Fatal(err)
	}
	report := runJSON(t, options{configPath: f.config, scan: true})
	if len(report.Entries) != 0 {
		t.Errorf("expected no duplicates after removing the copy, got %+v", report.Entries)
	}

	st, err := store.NewStore(f.db)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	tracks, err := st.Tracks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Errorf("expected 2 indexed tracks, got %d", len(tracks))
	}
}

func TestRunDoctor(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer
	if err := run(context.Background(), options{configPath: f.config, doctor: true}, &out); err != nil {
		t.Fatalf("doctor: %v", err)
	}
	for _, want := range []string{"Config file: OK", "Library root", "ffprobe: NOT FOUND", "Index: OK (0 tracks"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("doctor output missing %q:\n%s", want, out.String())
		}
	}
}

func TestStaleTracks(t *testing.T) {
	root := t.TempDir()
	elsewhere := t.TempDir()
	existing := []library.Track{
		{ID: "kept", Path: filepath.Join(root, "kept.mp3")},
		{ID: "gone", Path: filepath.Join(root, "sub", "gone.mp3")},
		{ID: "outside", Path: filepath.Join(elsewhere, "x.mp3")},
	}
	scanned := []library.Track{{ID: "kept"}}

	got := staleTracks(existing, scanned, []string{root})
	if len(got) != 1 || got[0] != "gone" {
		t.Errorf("staleTracks = %v, want [gone]", got)
	}
}
