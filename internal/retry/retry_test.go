package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleep returns a SleepFunc that records waits instead of blocking.
func recordingSleep(waits *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)

		return ctx.Err()
	}
}

func failingOp(failures int, calls *int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		*calls++
		if *calls <= failures {
			return errors.New("boom")
		}

		return nil
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantWaits []time.Duration
	}{
		{"first attempt", 0, nil},
		{"one failure", 1, []time.Duration{time.Second}},
		{"two failures", 2, []time.Duration{time.Second, 2 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var waits []time.Duration

			p := Default()
			p.Sleep = recordingSleep(&waits)

			calls := 0
			err := p.Do(context.Background(), failingOp(tt.failures, &calls))

			require.NoError(t, err)
			assert.Equal(t, tt.failures+1, calls)
			assert.Equal(t, tt.wantWaits, waits)
		})
	}
}

func TestDo_TotalWaitIsSumOfPowersOfTwo(t *testing.T) {
	var waits []time.Duration

	p := Default()
	p.MaxAttempts = 5
	p.Sleep = recordingSleep(&waits)

	calls := 0
	require.NoError(t, p.Do(context.Background(), failingOp(4, &calls)))

	var total time.Duration
	for _, w := range waits {
		total += w
	}

	// 2^0 + 2^1 + 2^2 + 2^3
	assert.Equal(t, 15*time.Second, total)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var waits []time.Duration

	p := Default()
	p.Sleep = recordingSleep(&waits)

	calls := 0
	err := p.Do(context.Background(), failingOp(10, &calls))

	require.Error(t, err)
	assert.Equal(t, DefaultMaxAttempts, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, DefaultMaxAttempts, exhausted.Attempts)
	assert.EqualError(t, exhausted.Err, "boom")
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	var waits []time.Duration

	p := Default()
	p.Sleep = recordingSleep(&waits)

	cause := errors.New("bad payload")
	calls := 0

	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++

		return Permanent(cause)
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
	assert.Empty(t, waits)
}

func TestDo_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := Default()
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()

		return ctx.Err()
	}

	calls := 0
	err := p.Do(ctx, failingOp(10, &calls))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_NotifyReceivesFailedAttempt(t *testing.T) {
	var notified []time.Duration

	p := Default()
	p.Sleep = recordingSleep(new([]time.Duration))
	p.Notify = func(err error, wait time.Duration) {
		assert.EqualError(t, err, "boom")

		notified = append(notified, wait)
	}

	calls := 0
	require.NoError(t, p.Do(context.Background(), failingOp(2, &calls)))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, notified)
}

func TestDo_AttemptTimeout(t *testing.T) {
	p := Policy{MaxAttempts: 1, Timeout: 10 * time.Millisecond}

	err := p.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()

		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestValue_ReturnsResult(t *testing.T) {
	p := Default()
	p.Sleep = recordingSleep(new([]time.Duration))

	calls := 0

	got, err := Value(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("boom")
		}

		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SleepContext(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
