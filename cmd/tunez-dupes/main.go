package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/tunez/dupes/internal/config"
	"github.com/tunez/dupes/internal/dedupe"
	"github.com/tunez/dupes/internal/library"
	"github.com/tunez/dupes/internal/logging"
	"github.com/tunez/dupes/internal/scan"
	"github.com/tunez/dupes/internal/store"
	"github.com/tunez/dupes/internal/ui"
)

var version = "0.1.0"

type options struct {
	configPath string
	doctor     bool
	scan       bool
	json       bool
	apply      bool
	resolve    string
	keep       string
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `tunez-dupes - find duplicate tracks in a music library

Usage: tunez-dupes [options]

Options:
  -config string
        Path to config file (default: ~/.config/tunez-dupes/config.toml)
  -version
        Print version and exit

Diagnostics:
  -doctor
        Check configuration, ffprobe and the index database

Detection:
  -scan
        Rescan library roots before detecting duplicates
  -json
        Print the report as JSON
  -apply
        Resolve every group that has an automatic recommendation

Resolution:
  -resolve string
        Group id to resolve by hand (requires -keep)
  -keep string
        Track id to keep for -resolve

Examples:
  tunez-dupes --scan                       # Index the library and report duplicates
  tunez-dupes --json > dupes.json          # Report from the existing index as JSON
  tunez-dupes --apply                      # Accept the automatic recommendations
  tunez-dupes --resolve <group> --keep <track>

`)
	}

	var opts options
	flag.StringVar(&opts.configPath, "config", "", "")
	flag.BoolVar(&opts.doctor, "doctor", false, "")
	flag.BoolVar(&opts.scan, "scan", false, "")
	flag.BoolVar(&opts.json, "json", false, "")
	flag.BoolVar(&opts.apply, "apply", false, "")
	flag.StringVar(&opts.resolve, "resolve", "", "")
	flag.StringVar(&opts.keep, "keep", "", "")
	showVersion := flag.Bool("version", false, "")
	flag.Parse()

	if *showVersion {
		fmt.Println("tunez-dupes", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("tunez-dupes: %v", err)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.resolve != "" && opts.keep == "" {
		return errors.New("-resolve requires -keep")
	}

	cfg, resolvedPath, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, logFile, err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logFile.Close()
	logger.Info("starting tunez-dupes", slog.String("config", resolvedPath), slog.String("version", version))

	if opts.doctor {
		runDoctor(ctx, cfg, resolvedPath, out, logger)
		return nil
	}

	st, err := store.NewStore(cfg.Library.IndexDB)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer st.Close()

	if opts.resolve != "" {
		if err := st.ResolveGroup(ctx, opts.resolve, opts.keep); err != nil {
			return err
		}
		logger.Info("group resolved", slog.String("group", opts.resolve), slog.String("keep", opts.keep))
		fmt.Fprintf(out, "Resolved group %s, keeping %s\n", opts.resolve, opts.keep)
		return nil
	}

	if opts.scan {
		if err := runScan(ctx, cfg, st, logger); err != nil {
			return err
		}
	}

	tracks, err := st.Tracks(ctx)
	if err != nil {
		return err
	}

	engine := dedupe.New(dedupe.Options{Logger: logger})
	groups, err := engine.DetectContext(ctx, tracks)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// A failed detection is reported as no duplicates.
		logger.Error("duplicate detection failed", slog.Any("err", err))
		groups = []library.DuplicateGroup{}
	}
	groups, err = dropResolved(ctx, st, groups)
	if err != nil {
		return err
	}
	if err := st.SaveGroups(ctx, groups); err != nil {
		return fmt.Errorf("save groups: %w", err)
	}

	report := ui.BuildReport(groups, tracks, engine.Recommend)
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else {
		theme := ui.GetTheme(cfg.UI.Theme, cfg.UI.NoColor)
		fmt.Fprint(out, ui.RenderReport(theme, report))
	}

	if opts.apply {
		applied, err := applyRecommendations(ctx, st, report, logger)
		if err != nil {
			return err
		}
		if !opts.json {
			fmt.Fprintf(out, "Applied %d of %d recommendations\n", applied, len(report.Entries))
		}
	}
	return nil
}

// dropResolved removes detected groups whose tracks all belong to a single
// group that was already resolved, so settled duplicates are not reported
// again.
func dropResolved(ctx context.Context, st *store.Store, groups []library.DuplicateGroup) ([]library.DuplicateGroup, error) {
	stored, err := st.Groups(ctx, true)
	if err != nil {
		return nil, err
	}
	var resolved []library.DuplicateGroup
	for _, g := range stored {
		if g.Resolved {
			resolved = append(resolved, g)
		}
	}
	if len(resolved) == 0 {
		return groups, nil
	}

	kept := make([]library.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		if !coveredBy(g, resolved) {
			kept = append(kept, g)
		}
	}
	return kept, nil
}

func coveredBy(g library.DuplicateGroup, resolved []library.DuplicateGroup) bool {
	for _, r := range resolved {
		all := true
		for _, id := range g.TrackIDs {
			if !r.Contains(id) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// loadConfig falls back to defaults when no path was given and the default
// config file does not exist.
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := config.Load(path)
	if err != nil && path == "" && errors.Is(err, fs.ErrNotExist) {
		def := config.Default()
		return &def, "(defaults)", nil
	}
	return cfg, resolved, err
}

func runScan(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) error {
	if len(cfg.Library.Roots) == 0 {
		return errors.New("no library roots configured")
	}

	ffprobe, err := cfg.FFprobe()
	if err != nil {
		logger.Warn("ffprobe unavailable, durations and bitrates will be unknown", slog.Any("err", err))
		ffprobe = ""
	}

	start := time.Now()
	scanner := scan.New(scan.Options{
		Workers:     cfg.Scan.Workers,
		Fingerprint: cfg.Scan.Fingerprint,
		FFprobePath: ffprobe,
		Logger:      logger,
	})
	scanned, err := scanner.Scan(ctx, cfg.Library.Roots)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	existing, err := st.Tracks(ctx)
	if err != nil {
		return err
	}
	if err := st.UpsertTracks(ctx, scanned); err != nil {
		return err
	}
	stale := staleTracks(existing, scanned, cfg.Library.Roots)
	if err := st.RemoveTracks(ctx, stale...); err != nil {
		return err
	}

	logger.Info("index updated",
		slog.Int("scanned", len(scanned)),
		slog.Int("removed", len(stale)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// staleTracks returns ids of indexed tracks under roots that the latest
// scan no longer found.
func staleTracks(existing, scanned []library.Track, roots []string) []string {
	found := make(map[string]bool, len(scanned))
	for _, t := range scanned {
		found[t.ID] = true
	}
	var stale []string
	for _, t := range existing {
		if !found[t.ID] && underAny(t.Path, roots) {
			stale = append(stale, t.ID)
		}
	}
	return stale
}

func underAny(path string, roots []string) bool {
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(abs, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func applyRecommendations(ctx context.Context, st *store.Store, report ui.Report, logger *slog.Logger) (int, error) {
	applied := 0
	for _, e := range report.Entries {
		rec := e.Recommendation
		if !rec.Action.Automatic() {
			continue
		}
		if err := st.ResolveGroup(ctx, e.Group.ID, rec.RecommendedTrackID); err != nil {
			return applied, fmt.Errorf("apply %s: %w", e.Group.ID, err)
		}
		logger.Info("recommendation applied",
			slog.String("group", e.Group.ID),
			slog.String("action", string(rec.Action)),
			slog.String("keep", rec.RecommendedTrackID))
		applied++
	}
	return applied, nil
}

func runDoctor(ctx context.Context, cfg *config.Config, cfgPath string, out io.Writer, logger *slog.Logger) {
	fmt.Fprintln(out, "tunez-dupes doctor")
	fmt.Fprintf(out, "Config file: OK (%s)\n", cfgPath)

	if len(cfg.Library.Roots) == 0 {
		fmt.Fprintln(out, "Library roots: NONE (only the existing index can be checked)")
	}
	for _, root := range cfg.Library.Roots {
		if _, err := os.Stat(root); err != nil {
			fmt.Fprintf(out, "Library root %s: NOT FOUND\n", root)
		} else {
			fmt.Fprintf(out, "Library root %s: OK\n", root)
		}
	}

	if path, err := cfg.FFprobe(); err != nil {
		fmt.Fprintln(out, "ffprobe: NOT FOUND (optional, for duration and bitrate)")
	} else {
		fmt.Fprintf(out, "ffprobe: OK (%s)\n", path)
	}

	st, err := store.NewStore(cfg.Library.IndexDB)
	if err != nil {
		fmt.Fprintf(out, "Index: ERROR - %v\n", err)
		return
	}
	defer st.Close()
	tracks, err := st.Tracks(ctx)
	if err != nil {
		fmt.Fprintf(out, "Index: ERROR - %v\n", err)
		return
	}
	groups, err := st.Groups(ctx, false)
	if err != nil {
		fmt.Fprintf(out, "Index: ERROR - %v\n", err)
		return
	}
	fmt.Fprintf(out, "Index: OK (%d tracks, %d open duplicate groups)\n", len(tracks), len(groups))

	logger.Info("doctor complete")
}
