package archive

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipstream/pkg/config"
	apperrors "zipstream/pkg/errors"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestStreamer_CopiesInOrderWithinChunkSize(t *testing.T) {
	data := payload(10_000)
	src := &fakeSource{data: append([]byte(nil), data...)}
	sink := &recordingSink{}
	s := NewStreamer(config.ArchiveConfig{ChunkSize: 1024})

	stats, err := s.Stream(context.Background(), src, sink)
	require.NoError(t, err)

	assert.Equal(t, 1, sink.prepared)
	assert.True(t, bytes.Equal(data, sink.body()))
	assert.LessOrEqual(t, sink.maxChunk(), 1024)
	assert.Equal(t, int64(len(data)), stats.Bytes)
	assert.Equal(t, int64(10), stats.Chunks)
}

func TestStreamer_ShortReadsAreForwardedAsIs(t *testing.T) {
	data := payload(1000)
	src := &fakeSource{data: append([]byte(nil), data...), maxRead: 7}
	sink := &recordingSink{}

	stats, err := NewStreamer(config.ArchiveConfig{ChunkSize: 512}).Stream(context.Background(), src, sink)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, sink.body()))
	assert.Equal(t, 7, sink.maxChunk())
	assert.Equal(t, int64(143), stats.Chunks)
}

func TestStreamer_DefaultChunkSize(t *testing.T) {
	s := NewStreamer(config.ArchiveConfig{})
	assert.Equal(t, 512*1024, s.chunkSize)
}

func TestStreamer_EmptyOutputStillPrepares(t *testing.T) {
	sink := &recordingSink{}
	stats, err := NewStreamer(config.ArchiveConfig{ChunkSize: 16}).Stream(context.Background(), &fakeSource{}, sink)

	require.NoError(t, err)
	assert.Equal(t, 1, sink.prepared)
	assert.Zero(t, stats.Bytes)
}

func TestStreamer_PacingDelay(t *testing.T) {
	const delay = 30 * time.Millisecond
	src := &fakeSource{data: payload(4 * 64)}
	sink := &recordingSink{}
	s := NewStreamer(config.ArchiveConfig{ChunkSize: 64, Delay: delay})

	_, err := s.Stream(context.Background(), src, sink)
	require.NoError(t, err)
	require.Len(t, sink.times, 4)

	for i := 1; i < len(sink.times); i++ {
		gap := sink.times[i].Sub(sink.times[i-1])
		assert.GreaterOrEqual(t, gap, delay, "gap %d", i)
	}
}

func TestStreamer_WriteFailureStopsImmediately(t *testing.T) {
	src := &fakeSource{data: payload(100 * 10)}
	sink := &recordingSink{failAfter: 2}

	stats, err := NewStreamer(config.ArchiveConfig{ChunkSize: 10}).Stream(context.Background(), src, sink)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrStreamInterrupted))
	assert.True(t, errors.Is(err, errClientGone))
	assert.Equal(t, int64(2), stats.Chunks)
	assert.Equal(t, 3, src.readCount(), "no read after the failed write")
}

func TestStreamer_ReadErrorPropagates(t *testing.T) {
	readErr := apperrors.ErrStreamInterrupted
	src := &fakeSource{readErr: readErr}

	_, err := NewStreamer(config.ArchiveConfig{ChunkSize: 10}).Stream(context.Background(), src, &recordingSink{})
	assert.True(t, errors.Is(err, apperrors.ErrStreamInterrupted))
}

func TestStreamer_PrepareFailure(t *testing.T) {
	src := &fakeSource{data: payload(10)}
	sink := &recordingSink{prepareErr: errors.New("hijacked")}

	_, err := NewStreamer(config.ArchiveConfig{ChunkSize: 10}).Stream(context.Background(), src, sink)
	assert.True(t, errors.Is(err, apperrors.ErrStreamInterrupted))
	assert.Equal(t, 0, src.readCount())
}

func TestStreamer_CancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{data: payload(1000)}
	sink := &recordingSink{onWrite: func(n int) {
		if n == 1 {
			cancel()
		}
	}}
	s := NewStreamer(config.ArchiveConfig{ChunkSize: 10, Delay: time.Hour})

	start := time.Now()
	stats, err := s.Stream(ctx, src, sink)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int64(1), stats.Chunks)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStreamer_EOFAfterCancelIsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{data: payload(10)}
	sink := &recordingSink{onWrite: func(int) { cancel() }}

	_, err := NewStreamer(config.ArchiveConfig{ChunkSize: 10}).Stream(ctx, src, sink)
	assert.True(t, errors.Is(err, context.Canceled))
}
