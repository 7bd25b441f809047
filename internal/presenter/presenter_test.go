package presenter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSetter remembers every applied path and fails for the paths in
// failing.
type recordingSetter struct {
	mu      sync.Mutex
	applied []string
	failing map[string]bool
}

func (s *recordingSetter) Apply(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applied = append(s.applied, path)

	if s.failing[path] {
		return errors.New("desktop refused " + path)
	}

	return nil
}

func (s *recordingSetter) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.applied...)
}

// stopAfter returns a wait function that records dwell times and cancels
// the run after n waits.
func stopAfter(n int, cancel context.CancelFunc, waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		if len(*waits) >= n {
			cancel()
		}

		return ctx.Err()
	}
}

func TestRun_CyclesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []time.Duration

	setter := &recordingSetter{}
	p := New(setter, Options{Interval: 500 * time.Millisecond, Wait: stopAfter(5, cancel, &waits)})

	err := p.Run(ctx, []string{"a.jpg", "b.jpg"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a.jpg", "b.jpg", "a.jpg", "b.jpg", "a.jpg"}, setter.calls())
	assert.Len(t, waits, 5)

	for _, w := range waits {
		assert.Equal(t, 500*time.Millisecond, w)
	}
}

func TestRun_FailureDoesNotStopCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		waits []time.Duration
		logs  bytes.Buffer
	)

	setter := &recordingSetter{failing: map[string]bool{"b.jpg": true}}
	p := New(setter, Options{
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
		Wait:   stopAfter(4, cancel, &waits),
	})

	err := p.Run(ctx, []string{"a.jpg", "b.jpg", "c.jpg"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg", "a.jpg"}, setter.calls())
	// the failed frame still got its dwell
	assert.Len(t, waits, 4)
	assert.Contains(t, logs.String(), "failed to set wallpaper")
	assert.Contains(t, logs.String(), "desktop refused b.jpg")

	state, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, 0, state.Index)
	assert.Equal(t, "a.jpg", state.Path)
	assert.EqualValues(t, 1, state.Cycles)
	assert.EqualValues(t, 1, state.Failed)
	assert.Equal(t, 3, state.Frames)
}

func TestRun_EmptyPaths(t *testing.T) {
	setter := &recordingSetter{}
	p := New(setter, Options{})

	err := p.Run(context.Background(), nil)

	assert.ErrorIs(t, err, ErrNoFrames)
	assert.Empty(t, setter.calls())
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	setter := &recordingSetter{}
	p := New(setter, Options{})

	err := p.Run(ctx, []string{"a.jpg"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, setter.calls())
}

func TestRun_RealWaitStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	setter := &recordingSetter{}
	p := New(setter, Options{Interval: time.Hour})

	start := time.Now()
	err := p.Run(ctx, []string{"a.jpg", "b.jpg"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []string{"a.jpg"}, setter.calls())
}

func TestRun_DoesNotAliasPaths(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths := []string{"a.jpg", "b.jpg"}

	var waits []time.Duration

	setter := &recordingSetter{}
	p := New(setter, Options{Wait: func(ctx context.Context, d time.Duration) error {
		paths[1] = "mutated.jpg"

		return stopAfter(2, cancel, &waits)(ctx, d)
	}})

	_ = p.Run(ctx, paths)

	assert.Equal(t, []string{"a.jpg", "b.jpg"}, setter.calls())
}

func TestCurrent_BeforeFirstFrame(t *testing.T) {
	p := New(&recordingSetter{}, Options{})

	_, ok := p.Current()
	assert.False(t, ok)
	assert.Equal(t, DefaultInterval, p.interval)
}
