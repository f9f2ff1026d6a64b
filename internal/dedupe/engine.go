package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/tunez/dupes/internal/library"
)

// Options configures an Engine. Zero values pick defaults.
type Options struct {
	Logger *slog.Logger
	IDs    IDGenerator
}

// Engine runs duplicate detection over library snapshots.
type Engine struct {
	logger *slog.Logger
	ids    IDGenerator
}

func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IDs == nil {
		opts.IDs = UUIDGenerator{}
	}
	return &Engine{logger: opts.Logger, ids: opts.IDs}
}

// Outcome is the result delivered by DetectAsync.
type Outcome struct {
	Groups []library.DuplicateGroup
	Err    error
}

// Detect runs every detector over tracks and reconciles the candidates.
// An empty snapshot yields an empty result. A panic during detection is
// recovered and returned as an error wrapping library.ErrInternal.
func (e *Engine) Detect(tracks []library.Track) ([]library.DuplicateGroup, error) {
	return e.DetectContext(context.Background(), tracks)
}

// DetectContext is Detect with a context checked between detectors. When
// ctx is never cancelled the result is the same as Detect's.
func (e *Engine) DetectContext(ctx context.Context, tracks []library.Track) (groups []library.DuplicateGroup, err error) {
	if len(tracks) == 0 {
		return []library.DuplicateGroup{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("duplicate detection panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			groups = nil
			err = fmt.Errorf("%w: %v", library.ErrInternal, r)
		}
	}()

	var candidates []library.DuplicateGroup
	for _, d := range detectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found := d.detect(tracks, e.ids)
		e.logger.Debug("detector finished", slog.String("type", string(d.typ)), slog.Int("candidates", len(found)))
		candidates = append(candidates, found...)
	}

	accepted := Reconcile(candidates)
	e.logger.Info("duplicate detection complete",
		slog.Int("tracks", len(tracks)),
		slog.Int("candidates", len(candidates)),
		slog.Int("groups", len(accepted)))
	return accepted, nil
}

// DetectDuplicates is the fail-open form of Detect: any failure is logged
// and reported as no duplicates.
func (e *Engine) DetectDuplicates(tracks []library.Track) []library.DuplicateGroup {
	groups, err := e.Detect(tracks)
	if err != nil {
		e.logger.Error("duplicate detection failed", slog.Any("err", err))
		return []library.DuplicateGroup{}
	}
	return groups
}

// DetectAsync runs DetectContext on its own goroutine and delivers exactly
// one Outcome. tracks must not be modified until the Outcome arrives.
func (e *Engine) DetectAsync(ctx context.Context, tracks []library.Track) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		groups, err := e.DetectContext(ctx, tracks)
		out <- Outcome{Groups: groups, Err: err}
	}()
	return out
}

// Recommend suggests a keeper for group. See the package-level Recommend.
func (e *Engine) Recommend(group *library.DuplicateGroup, tracks []library.Track) library.RecommendedAction {
	return Recommend(group, tracks)
}
