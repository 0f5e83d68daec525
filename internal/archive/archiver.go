package archive

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"zipstream/internal/domain"
	"zipstream/pkg/config"
	"zipstream/pkg/logger"
	"zipstream/pkg/platform"
)

const recordTimeout = 5 * time.Second

// Recorder persists finished transfers.
type Recorder interface {
	Record(ctx context.Context, t *domain.Transfer) error
}

// Archiver runs the whole pipeline for one request: resolve, start,
// stream under supervision, record.
type Archiver struct {
	resolver   *Resolver
	manager    *Manager
	streamer   *Streamer
	supervisor *Supervisor
	slots      *semaphore.Weighted
	recorder   Recorder
	logger     *logger.Logger
}

type Option func(*Archiver)

// WithRecorder stores every finished transfer in r.
func WithRecorder(r Recorder) Option {
	return func(a *Archiver) {
		a.recorder = r
	}
}

// WithResolver replaces the storage-root resolver, as the dump command does
// for an arbitrary local directory.
func WithResolver(r *Resolver) Option {
	return func(a *Archiver) {
		a.resolver = r
	}
}

func New(cfg config.ArchiveConfig, p platform.Platform, opts ...Option) *Archiver {
	a := &Archiver{
		resolver:   NewResolver(cfg.StorageRoot, p),
		manager:    NewManager(p, cfg),
		streamer:   NewStreamer(cfg),
		supervisor: NewSupervisor(),
		logger:     logger.WithField("component", "archiver"),
	}
	if cfg.MaxConcurrent > 0 {
		a.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive streams the archive of directory id into sink. Errors match
// ErrNotFound, ErrSpawn, ErrStreamInterrupted or a context error. The
// returned transfer is never nil.
func (a *Archiver) Archive(ctx context.Context, id string, sink Sink) (*domain.Transfer, error) {
	transfer := domain.NewTransfer(id)
	log := a.logger.WithField("id", id)

	err := a.run(ctx, transfer, sink)
	transfer.Finish(err)

	switch transfer.Outcome {
	case domain.OutcomeCompleted:
		log.Info("archive transfer completed",
			"bytes", transfer.Bytes, "chunks", transfer.Chunks, "duration", transfer.Duration)
	case domain.OutcomeNotFound:
		log.Debug("archive source not found", "error", err)
	case domain.OutcomeCancelled, domain.OutcomeInterrupted:
		log.Info("archive transfer stopped early",
			"outcome", transfer.Outcome, "bytes", transfer.Bytes, "error", err)
	default:
		log.Error("archive transfer failed", "outcome", transfer.Outcome, "error", err)
	}

	a.record(ctx, transfer)
	return transfer, err
}

func (a *Archiver) run(ctx context.Context, transfer *domain.Transfer, sink Sink) error {
	req, err := a.resolver.Resolve(transfer.ID)
	if err != nil {
		return err
	}
	transfer.Dir = req.Dir

	if a.slots != nil {
		if err := a.slots.Acquire(ctx, 1); err != nil {
			return err
		}
		defer a.slots.Release(1)
	}

	proc, err := a.manager.Start(ctx, req)
	if err != nil {
		return err
	}

	exitCode, err := a.supervisor.Supervise(ctx, proc, func(ctx context.Context) error {
		stats, err := a.streamer.Stream(ctx, proc, sink)
		transfer.Bytes = stats.Bytes
		transfer.Chunks = stats.Chunks
		return err
	})
	transfer.ExitCode = exitCode
	return err
}

func (a *Archiver) record(ctx context.Context, transfer *domain.Transfer) {
	if a.recorder == nil {
		return
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := a.recorder.Record(rctx, transfer); err != nil {
		a.logger.Warn("failed to record transfer", "id", transfer.ID, "error", err)
	}
}
