package dedupe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/tunez/dupes/internal/library"
)

func quietEngine(ids IDGenerator) *Engine {
	return New(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), IDs: ids})
}

func TestDetectEmptyLibrary(t *testing.T) {
	e := quietEngine(nil)
	for _, tracks := range [][]library.Track{nil, {}} {
		groups, err := e.Detect(tracks)
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if groups == nil || len(groups) != 0 {
			t.Errorf("expected empty non-nil result, got %#v", groups)
		}
	}
}

func TestDetectSingleTrack(t *testing.T) {
	groups, err := quietEngine(nil).Detect([]library.Track{track("a", "Song", "Artist", "Album", 100)})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %v", ids(groups))
	}
}

func TestDetect(t *testing.T) {
	x := track("x", "Song A", "Band", "LP", 200)
	x.Fingerprint = "H1"
	y := track("y", "Different Name", "Band", "LP", 200)
	y.Fingerprint = "H1"

	tests := []struct {
		name   string
		tracks []library.Track
		typ    library.DuplicateType
		want   []string
	}{
		{"exact fingerprint", []library.Track{x, y}, library.DuplicateExact, []string{"x", "y"}},
		// Metadata, duration and fuzzy all score 1.0; metadata runs first.
		{"metadata wins ties", imagine(), library.DuplicateMetadata, []string{"A", "B"}},
		{"typo is fuzzy only", hotelCalifornia(), library.DuplicateFuzzy, []string{"C", "D"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, err := quietEngine(NewSequenceGenerator("g")).Detect(tt.tracks)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if len(groups) != 1 {
				t.Fatalf("expected 1 group, got %d: %+v", len(groups), groups)
			}
			if groups[0].DuplicateType != tt.typ {
				t.Errorf("DuplicateType = %q, want %q", groups[0].DuplicateType, tt.typ)
			}
			if !reflect.DeepEqual(groups[0].TrackIDs, tt.want) {
				t.Errorf("TrackIDs = %v, want %v", groups[0].TrackIDs, tt.want)
			}
		})
	}
}

func TestDetectMixedLibrary(t *testing.T) {
	tracks := append(append(imagine(), hotelCalifornia()...),
		track("u", "Unique Song", "Solo Artist", "Only Album", 321),
	)
	groups, err := quietEngine(NewSequenceGenerator("g")).Detect(tracks)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	got := ids(groups)
	want := [][]string{{"A", "B"}, {"C", "D"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("groups = %v, want %v", got, want)
	}
	for _, g := range groups {
		if g.Contains("u") {
			t.Errorf("unique track grouped in %s", g.ID)
		}
	}
}

func TestDetectIsReproducible(t *testing.T) {
	tracks := append(imagine(), hotelCalifornia()...)
	first, err := quietEngine(NewSequenceGenerator("g")).Detect(tracks)
	if err != nil {
		t.Fatal(err)
	}
	second, err := quietEngine(NewSequenceGenerator("g")).Detect(tracks)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestDetectRecoversPanic(t *testing.T) {
	boom := IDGeneratorFunc(func() string { panic("boom") })
	var buf bytes.Buffer
	e := New(Options{
		Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		IDs:    boom,
	})

	groups, err := e.Detect(imagine())
	if !errors.Is(err, library.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if groups != nil {
		t.Errorf("expected nil groups on error, got %v", groups)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry panic value: %v", err)
	}

	buf.Reset()
	if got := e.DetectDuplicates(imagine()); got == nil || len(got) != 0 {
		t.Errorf("DetectDuplicates should fail open to empty, got %#v", got)
	}
	if !strings.Contains(buf.String(), "duplicate detection failed") {
		t.Errorf("expected failure to be logged, got %q", buf.String())
	}
}

func TestDetectContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	groups, err := quietEngine(nil).DetectContext(ctx, imagine())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if groups != nil {
		t.Errorf("expected nil groups, got %v", groups)
	}
}

func TestDetectAsync(t *testing.T) {
	tracks := append(imagine(), hotelCalifornia()...)
	want, err := quietEngine(NewSequenceGenerator("g")).Detect(tracks)
	if err != nil {
		t.Fatal(err)
	}

	ch := quietEngine(NewSequenceGenerator("g")).DetectAsync(context.Background(), tracks)
	out, ok := <-ch
	if !ok {
		t.Fatal("channel closed without an outcome")
	}
	if out.Err != nil {
		t.Fatalf("DetectAsync: %v", out.Err)
	}
	if !reflect.DeepEqual(out.Groups, want) {
		t.Errorf("async result differs:\n%+v\n%+v", out.Groups, want)
	}
	if _, ok := <-ch; ok {
		t.Error("expected exactly one outcome")
	}
}

func TestDefaultIDsAreUnique(t *testing.T) {
	tracks := append(imagine(), hotelCalifornia()...)
	groups := quietEngine(nil).DetectDuplicates(tracks)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].ID == "" || groups[0].ID == groups[1].ID {
		t.Errorf("expected distinct ids, got %q and %q", groups[0].ID, groups[1].ID)
	}
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("grp-")
	for _, want := range []string{"grp-1", "grp-2", "grp-3"} {
		if got := g.NewID(); got != want {
			t.Errorf("NewID() = %q, want %q", got, want)
		}
	}
}

func TestEngineRecommend(t *testing.T) {
	tracks := imagine()
	e := quietEngine(NewSequenceGenerator("g"))
	groups := e.DetectDuplicates(tracks)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	rec := e.Recommend(&groups[0], tracks)
	if rec.RecommendedTrackID != "B" {
		t.Errorf("Recommend = %+v", rec)
	}
}
