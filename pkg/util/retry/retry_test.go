package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

func TestDoSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, Sleep(time.Millisecond))
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), func() error {
		calls++
		return boom
	}, Attempts(4), Sleep(time.Millisecond))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
}

func TestDoUnrecoverable(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), func() error {
		calls++
		return Unrecoverable(boom)
	}, Sleep(time.Millisecond))
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsRecoverable(err))
	assert.Equal(t, 1, calls)
}

func TestDoRetryErr(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return merr.WrapErrMalformedData("bad", 0)
	}, Sleep(time.Millisecond), RetryErr(merr.IsRetryableErr))
	assert.ErrorIs(t, err, merr.ErrMalformedData)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Do(context.Background(), func() error {
		calls++
		return merr.WrapErrIoFailed("file", errors.New("busy"))
	}, Attempts(3), Sleep(time.Millisecond), RetryErr(merr.IsRetryableErr))
	assert.ErrorIs(t, err, merr.ErrIoFailed)
	assert.Equal(t, 3, calls)
}

func TestDoContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Do(ctx, func() error { return nil }), context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	boom := errors.New("boom")
	err := Do(ctx, func() error { return boom }, Attempts(0), Sleep(10*time.Millisecond))
	assert.ErrorIs(t, err, boom)
}

func TestSleepOptions(t *testing.T) {
	c := newDefaultConfig()
	Sleep(5 * time.Second)(c)
	assert.Equal(t, 10*time.Second, c.maxSleepTime)
	MaxSleepTime(time.Second)(c)
	assert.Equal(t, 10*time.Second, c.maxSleepTime)
	MaxSleepTime(time.Minute)(c)
	assert.Equal(t, time.Minute, c.maxSleepTime)
}
