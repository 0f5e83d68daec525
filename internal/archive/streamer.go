package archive

import (
	"context"
	"fmt"
	"time"

	"zipstream/pkg/config"
	apperrors "zipstream/pkg/errors"
	"zipstream/pkg/logger"
)

// Sink receives one archive stream. Prepare is called once before the first
// Write. Write must not retain chunk after returning.
type Sink interface {
	Prepare() error
	Write(chunk []byte) error
}

// ChunkReader is the read side of a Process.
type ChunkReader interface {
	ReadChunk(buf []byte) (chunk []byte, eof bool, err error)
}

// Stats summarises one streaming loop.
type Stats struct {
	Bytes  int64
	Chunks int64
}

// Streamer copies archive output to a sink in bounded chunks.
type Streamer struct {
	chunkSize int
	delay     time.Duration
	logger    *logger.Logger
}

func NewStreamer(cfg config.ArchiveConfig) *Streamer {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = config.DefaultChunkSize
	}
	return &Streamer{
		chunkSize: chunkSize,
		delay:     cfg.Delay,
		logger:    logger.WithField("component", "archive-streamer"),
	}
}

// Stream runs the copy loop until src reports EOF. Chunks reach the sink in
// the order they were read. A failed write ends the loop with
// ErrStreamInterrupted; cancellation is returned as ctx.Err().
func (s *Streamer) Stream(ctx context.Context, src ChunkReader, sink Sink) (Stats, error) {
	var stats Stats

	if err := sink.Prepare(); err != nil {
		return stats, fmt.Errorf("%w: prepare sink: %w", apperrors.ErrStreamInterrupted, err)
	}

	var pacer *time.Timer
	if s.delay > 0 {
		pacer = time.NewTimer(s.delay)
		pacer.Stop()
		defer pacer.Stop()
	}

	buf := make([]byte, s.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		chunk, eof, err := src.ReadChunk(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			return stats, err
		}

		if len(chunk) > 0 {
			if err := sink.Write(chunk); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return stats, ctxErr
				}
				s.logger.Debug("sink write failed", "afterBytes", stats.Bytes, "error", err)
				return stats, fmt.Errorf("%w: write chunk: %w", apperrors.ErrStreamInterrupted, err)
			}
			stats.Bytes += int64(len(chunk))
			stats.Chunks++

			if pacer != nil {
				pacer.Reset(s.delay)
				select {
				case <-ctx.Done():
					return stats, ctx.Err()
				case <-pacer.C:
				}
			}
		}

		if eof {
			// EOF also follows a kill issued on cancellation
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			return stats, nil
		}
	}
}
