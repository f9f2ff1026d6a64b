// Package scan walks music folders and turns audio files into library
// tracks.
package scan

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dhowden/tag"
	"golang.org/x/sync/errgroup"

	"github.com/tunez/dupes/internal/library"
)

var allowedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".wav":  true,
	".opus": true,
}

const unknownArtist = "Unknown Artist"

// Options configures a Scanner.
type Options struct {
	Workers     int  // concurrent file reads, defaults to runtime.NumCPU()
	Fingerprint bool // compute a tag-independent content hash per file
	FFprobePath string
	Logger      *slog.Logger
}

// Scanner reads audio files into tracks.
type Scanner struct {
	workers     int
	fingerprint bool
	ffprobe     string
	logger      *slog.Logger
	probe       probeFunc
}

func New(opts Options) *Scanner {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scanner{
		workers:     opts.Workers,
		fingerprint: opts.Fingerprint,
		ffprobe:     opts.FFprobePath,
		logger:      opts.Logger,
		probe:       ffprobe,
	}
}

// Scan walks roots in order and returns one track per readable audio file,
// in discovery order. Files that cannot be read are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, roots []string) ([]library.Track, error) {
	s.logger.Info("scan started", slog.Int("roots", len(roots)), slog.Int("workers", s.workers))

	paths, err := discover(ctx, roots)
	if err != nil {
		return nil, err
	}

	results := make([]*library.Track, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := s.readFile(gctx, path)
			if err != nil {
				s.logger.Debug("skipping file", slog.String("path", path), slog.Any("err", err))
				return nil
			}
			results[i] = &t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tracks := make([]library.Track, 0, len(paths))
	for _, t := range results {
		if t != nil {
			tracks = append(tracks, *t)
		}
	}
	s.logger.Info("scan finished",
		slog.Int("files", len(paths)),
		slog.Int("tracks", len(tracks)),
		slog.Int("skipped", len(paths)-len(tracks)))
	return tracks, nil
}

// discover lists audio files under roots. WalkDir visits entries in lexical
// order so the result is stable between runs.
func discover(ctx context.Context, roots []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				// Unreadable subtrees are skipped, a missing root is not.
				if path == root {
					return err
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !allowedExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil
			}
			if !seen[abs] {
				seen[abs] = true
				paths = append(paths, abs)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return paths, nil
}

func (s *Scanner) readFile(ctx context.Context, path string) (library.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return library.Track{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return library.Track{}, err
	}

	t := library.Track{
		ID:        hash(path),
		Path:      path,
		DateAdded: info.ModTime(),
	}

	meta, err := tag.ReadFrom(f)
	if err != nil {
		s.logger.Debug("no tags", slog.String("path", path), slog.Any("err", err))
	} else {
		t.Title = strings.TrimSpace(meta.Title())
		t.Artist = strings.TrimSpace(meta.Artist())
		t.Album = strings.TrimSpace(meta.Album())
	}
	applyFallbacks(&t)

	if s.fingerprint {
		if sum, err := fingerprint(f); err != nil {
			s.logger.Debug("fingerprint failed", slog.String("path", path), slog.Any("err", err))
		} else {
			t.Fingerprint = sum
		}
	}

	if s.ffprobe != "" {
		if res, err := s.probe(ctx, s.ffprobe, path); err != nil {
			s.logger.Debug("probe failed", slog.String("path", path), slog.Any("err", err))
		} else {
			t.Duration = res.Duration
			t.Bitrate = res.Bitrate
		}
	}
	return t, nil
}

func applyFallbacks(t *library.Track) {
	if t.Title == "" {
		t.Title = strings.TrimSuffix(filepath.Base(t.Path), filepath.Ext(t.Path))
	}
	if t.Artist == "" {
		t.Artist = unknownArtist
	}
	if t.Album == "" {
		t.Album = filepath.Base(filepath.Dir(t.Path))
		if t.Album == "." || t.Album == string(filepath.Separator) {
			t.Album = "Unknown Album"
		}
	}
}

// fingerprint hashes the audio payload, skipping ID3, MP4 and FLAC metadata,
// so retagged copies of a file still match.
func fingerprint(f io.ReadSeeker) (string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return tag.Sum(f)
}

func hash(parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
