package archive

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"zipstream/internal/domain"
)

// fakeSource serves data in reads of at most len(buf), optionally capped.
type fakeSource struct {
	mu      sync.Mutex
	data    []byte
	maxRead int
	reads   int
	readErr error
}

func (f *fakeSource) ReadChunk(buf []byte) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if f.readErr != nil {
		return nil, false, f.readErr
	}
	n := len(buf)
	if f.maxRead > 0 && n > f.maxRead {
		n = f.maxRead
	}
	if n > len(f.data) {
		n = len(f.data)
	}
	copy(buf, f.data[:n])
	f.data = f.data[n:]
	return buf[:n], len(f.data) == 0, nil
}

func (f *fakeSource) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// recordingSink keeps every chunk and the time it was written.
type recordingSink struct {
	mu         sync.Mutex
	prepared   int
	prepareErr error
	chunks     [][]byte
	times      []time.Time
	failAfter  int // fail the write after this many successful ones; 0 disables
	onWrite    func(n int)
}

var errClientGone = errors.New("write: broken pipe")

func (s *recordingSink) Prepare() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepared++
	return s.prepareErr
}

func (s *recordingSink) Write(chunk []byte) error {
	s.mu.Lock()
	if s.prepared == 0 {
		s.mu.Unlock()
		panic("write before prepare")
	}
	if s.failAfter > 0 && len(s.chunks) >= s.failAfter {
		s.mu.Unlock()
		return errClientGone
	}
	s.chunks = append(s.chunks, append([]byte(nil), chunk...))
	s.times = append(s.times, time.Now())
	n := len(s.chunks)
	cb := s.onWrite
	s.mu.Unlock()

	if cb != nil {
		cb(n)
	}
	return nil
}

func (s *recordingSink) body() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Join(s.chunks, nil)
}

func (s *recordingSink) maxChunk() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, c := range s.chunks {
		if len(c) > max {
			max = len(c)
		}
	}
	return max
}

func (s *recordingSink) isPrepared() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prepared > 0
}

// fakeLifecycle records teardown calls in order.
type fakeLifecycle struct {
	mu           sync.Mutex
	calls        []string
	terminateErr error
	reapErr      error
	exitCode     int
	terminated   chan struct{}
	once         sync.Once
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{terminated: make(chan struct{})}
}

func (f *fakeLifecycle) Pid() int { return 4242 }

func (f *fakeLifecycle) Terminate() error {
	f.mu.Lock()
	f.calls = append(f.calls, "terminate")
	f.mu.Unlock()
	f.once.Do(func() { close(f.terminated) })
	return f.terminateErr
}

func (f *fakeLifecycle) Reap() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "reap")
	return f.exitCode, f.reapErr
}

func (f *fakeLifecycle) Stderr() string { return "" }

func (f *fakeLifecycle) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeRecorder collects recorded transfers.
type fakeRecorder struct {
	mu        sync.Mutex
	transfers []domain.Transfer
	ctxErrs   []error
}

func (r *fakeRecorder) Record(ctx context.Context, t *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, *t)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return nil
}

func (r *fakeRecorder) recorded() []domain.Transfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Transfer(nil), r.transfers...)
}
