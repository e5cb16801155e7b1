package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleeps struct{ d []time.Duration }

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.d = append(s.d, d)
	return nil
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	p := Policy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 3}
	assert.Equal(t, time.Duration(0), p.Backoff(0))
	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 300*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 900*time.Millisecond, p.Backoff(3))
	assert.Equal(t, time.Second, p.Backoff(4))
	assert.Equal(t, time.Second, p.Backoff(40))
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	rec := &sleeps{}
	p := Default()
	p.Sleep = rec.sleep

	calls := 0
	n, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 500 * time.Millisecond}, rec.d)
}

func TestDoExhausts(t *testing.T) {
	t.Parallel()

	rec := &sleeps{}
	p := Policy{MaxAttempts: 4, InitialBackoff: time.Millisecond, Multiplier: 2, Sleep: rec.sleep}

	boom := errors.New("boom")
	n, err := p.Do(context.Background(), func(context.Context) error { return boom })
	assert.Equal(t, 4, n)
	assert.ErrorIs(t, err, boom)

	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 4, ex.Attempts)
	assert.Len(t, rec.d, 3)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	permanent := errors.New("bad request")
	p := Default()
	p.Sleep = (&sleeps{}).sleep
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	n, err := p.Do(context.Background(), func(context.Context) error { return permanent })
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, permanent)
	var ex *ExhaustedError
	assert.False(t, errors.As(err, &ex))
}

func TestDoHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Default().Do(ctx, func(context.Context) error {
		t.Fatal("must not be called")
		return nil
	})
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoRealSleepCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := Policy{MaxAttempts: 5, InitialBackoff: time.Hour}
	flaky := errors.New("flaky")
	start := time.Now()
	n, err := p.Do(ctx, func(context.Context) error { return flaky })
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, flaky)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestZeroPolicyRunsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	n, err := Policy{}.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("x")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
}
