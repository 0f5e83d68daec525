package archive

import (
	"context"
	"errors"

	apperrors "zipstream/pkg/errors"
	"zipstream/pkg/logger"
)

// lifecycle is the teardown half of a Process.
type lifecycle interface {
	Pid() int
	Terminate() error
	Reap() (int, error)
	Stderr() string
}

// Supervisor owns teardown of archive processes. Nothing else calls
// Terminate or Reap.
type Supervisor struct {
	logger *logger.Logger
}

func NewSupervisor() *Supervisor {
	return &Supervisor{
		logger: logger.WithField("component", "archive-supervisor"),
	}
}

// Supervise runs loop and then terminates and reaps proc, whatever way loop
// ended. A cancelled ctx kills proc immediately so a loop blocked on the
// pipe wakes up. The loop's error is returned unchanged; a clean return
// after cancellation is reported as ctx.Err(). The exit code is -1 when the
// process died by signal.
func (s *Supervisor) Supervise(ctx context.Context, proc lifecycle, loop func(ctx context.Context) error) (exitCode int, err error) {
	log := s.logger.WithField("pid", proc.Pid())

	stop := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			log.Debug("request cancelled, killing archive process", "reason", ctx.Err())
			s.terminate(log, proc)
		case <-stop:
		}
	}()

	defer func() {
		r := recover()

		close(stop)
		<-watcherDone

		s.terminate(log, proc)
		exitCode = s.reap(log, proc)

		if r != nil {
			panic(r)
		}
	}()

	err = loop(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return exitCode, err
}

func (s *Supervisor) terminate(log *logger.Logger, proc lifecycle) {
	err := proc.Terminate()
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrProcessAlreadyExited):
		log.Debug("archive process already exited")
	default:
		log.Warn("failed to terminate archive process", "error", err)
	}
}

func (s *Supervisor) reap(log *logger.Logger, proc lifecycle) int {
	code, err := proc.Reap()
	if err != nil {
		log.Warn("archive process exited abnormally", "exitCode", code, "error", err, "stderr", proc.Stderr())
		return code
	}

	log.Debug("archive process reaped", "exitCode", code)
	return code
}
