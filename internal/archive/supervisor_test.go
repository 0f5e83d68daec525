package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "zipstream/pkg/errors"
)

func TestSupervisor_TeardownAfterCleanLoop(t *testing.T) {
	proc := newFakeLifecycle()
	proc.exitCode = 0

	code, err := NewSupervisor().Supervise(context.Background(), proc, func(context.Context) error {
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"terminate", "reap"}, proc.callLog())
}

func TestSupervisor_LoopErrorIsKept(t *testing.T) {
	proc := newFakeLifecycle()
	proc.terminateErr = errors.New("operation not permitted")
	proc.reapErr = errors.New("exit status 1")
	loopErr := errors.New("write chunk: broken pipe")

	_, err := NewSupervisor().Supervise(context.Background(), proc, func(context.Context) error {
		return loopErr
	})

	assert.Same(t, loopErr, err)
	assert.Equal(t, []string{"terminate", "reap"}, proc.callLog())
}

func TestSupervisor_AlreadyExitedIsSwallowed(t *testing.T) {
	proc := newFakeLifecycle()
	proc.terminateErr = apperrors.NewProcessError(4242, "terminate", apperrors.ErrProcessAlreadyExited)

	_, err := NewSupervisor().Supervise(context.Background(), proc, func(context.Context) error {
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"terminate", "reap"}, proc.callLog())
}

func TestSupervisor_CancelTerminatesBlockedLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	proc := newFakeLifecycle()
	proc.exitCode = -1

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	code, err := NewSupervisor().Supervise(ctx, proc, func(context.Context) error {
		// stands in for a read that only returns once the process dies
		select {
		case <-proc.terminated:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("loop was never unblocked")
		}
	})

	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, -1, code)

	calls := proc.callLog()
	require.NotEmpty(t, calls)
	assert.Equal(t, "terminate", calls[0])
	assert.Equal(t, "reap", calls[len(calls)-1])
}

func TestSupervisor_PanicStillReaps(t *testing.T) {
	proc := newFakeLifecycle()

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = NewSupervisor().Supervise(context.Background(), proc, func(context.Context) error {
			panic("boom")
		})
	})
	assert.Equal(t, []string{"terminate", "reap"}, proc.callLog())
}
