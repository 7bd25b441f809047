// Package presenter cycles cached frames as the desktop background.
package presenter

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/italolelis/epic_wallpaper/internal/retry"
	"github.com/italolelis/epic_wallpaper/internal/telemetry"
	"github.com/italolelis/epic_wallpaper/internal/wallpaper"
)

// DefaultInterval is how long each frame stays on screen.
const DefaultInterval = 500 * time.Millisecond

// ErrNoFrames is returned by Run when there is nothing to present.
var ErrNoFrames = errors.New("no frames to present")

// State is a snapshot of the presentation.
type State struct {
	Index  int       `json:"index"`
	Path   string    `json:"path"`
	Frames int       `json:"frames"`
	Cycles int64     `json:"cycles"`
	Failed int64     `json:"failed"`
	Since  time.Time `json:"since"`
}

type Options struct {
	// Interval is the dwell time of each frame. Defaults to DefaultInterval.
	Interval  time.Duration
	Logger    *slog.Logger
	Telemetry *telemetry.Telemetry
	// Wait blocks for the dwell time. Defaults to retry.SleepContext.
	Wait retry.SleepFunc
}

// Presenter applies frames in order through a wallpaper.Setter, wrapping to
// the first frame after the last, until its context is cancelled.
type Presenter struct {
	setter    wallpaper.Setter
	interval  time.Duration
	logger    *slog.Logger
	telemetry *telemetry.Telemetry
	wait      retry.SleepFunc

	state  atomic.Pointer[State]
	failed atomic.Int64
}

func New(setter wallpaper.Setter, opts Options) *Presenter {
	p := &Presenter{
		setter:    setter,
		interval:  opts.Interval,
		logger:    opts.Logger,
		telemetry: opts.Telemetry,
		wait:      opts.Wait,
	}

	if p.interval <= 0 {
		p.interval = DefaultInterval
	}

	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}

	if p.wait == nil {
		p.wait = retry.SleepContext
	}

	return p
}

// Run presents paths forever. It only returns on cancellation, with the
// context error, or with ErrNoFrames when paths is empty. A frame that fails
// to apply is logged and still gets its dwell time.
func (p *Presenter) Run(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return ErrNoFrames
	}

	frames := append([]string(nil), paths...)

	p.logger.InfoContext(ctx, "presenting frames", "frames", len(frames), "interval", p.interval)

	var cycles int64

	for {
		for i, path := range frames {
			if err := ctx.Err(); err != nil {
				return err
			}

			p.present(ctx, i, path, len(frames), cycles)

			if err := p.wait(ctx, p.interval); err != nil {
				return err
			}
		}

		cycles++
		p.logger.DebugContext(ctx, "completed presentation cycle", "cycles", cycles)
	}
}

func (p *Presenter) present(ctx context.Context, index int, path string, frames int, cycles int64) {
	if err := p.setter.Apply(ctx, path); err != nil {
		if ctx.Err() != nil {
			return
		}

		p.failed.Add(1)
		p.telemetry.RecordPresentation(ctx, "error")
		p.logger.ErrorContext(ctx, "failed to set wallpaper", "index", index, "path", path, "err", err)

		return
	}

	p.telemetry.RecordPresentation(ctx, "success")
	p.state.Store(&State{
		Index:  index,
		Path:   path,
		Frames: frames,
		Cycles: cycles,
		Failed: p.failed.Load(),
		Since:  time.Now(),
	})
	p.logger.DebugContext(ctx, "wallpaper set", "index", index, "path", path)
}

// Current returns the frame on screen. ok is false until a frame has been
// applied.
func (p *Presenter) Current() (State, bool) {
	s := p.state.Load()
	if s == nil {
		return State{}, false
	}

	st := *s
	st.Failed = p.failed.Load()

	return st, true
}
