package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"

	"zipstream/internal/domain"
	"zipstream/pkg/config"
	apperrors "zipstream/pkg/errors"
	"zipstream/pkg/logger"
	"zipstream/pkg/platform"
)

const stderrTailSize = 64 * 1024

// Manager launches archive processes. It holds no per-request state.
type Manager struct {
	platform platform.Platform
	command  string
	args     []string
	logger   *logger.Logger
}

func NewManager(p platform.Platform, cfg config.ArchiveConfig) *Manager {
	return &Manager{
		platform: p,
		command:  cfg.Command,
		args:     append([]string(nil), cfg.Args...),
		logger:   logger.WithField("component", "process-manager"),
	}
}

// Start launches the archive tool inside req.Dir with stdout on a pipe.
// The returned process is RUNNING and must be handed to a Supervisor.
func (m *Manager) Start(ctx context.Context, req *domain.ArchiveRequest) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := m.logger.WithFields("id", req.ID, "command", m.command)

	cmd := m.platform.CreateCommand(m.command, m.args...)
	cmd.SetDir(req.Dir)
	cmd.SetSysProcAttr(m.platform.CreateProcessGroup())

	p := &Process{
		cmd:      cmd,
		platform: m.platform,
		stderr:   newTailBuffer(stderrTailSize),
		state:    domain.ProcessCreated,
	}
	cmd.SetStderr(p.stderr)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.state = domain.ProcessReaped
		return nil, fmt.Errorf("%w: stdout pipe: %w", apperrors.ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		p.state = domain.ProcessReaped
		log.Error("failed to start archive process", "error", err)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSpawn, err)
	}

	proc := cmd.Process()
	if proc == nil {
		// Start succeeded so a handle must exist; reap whatever is there.
		_ = cmd.Wait()
		p.state = domain.ProcessReaped
		return nil, fmt.Errorf("%w: process is nil after start", apperrors.ErrSpawn)
	}

	p.stdout = stdout
	p.pid = proc.Pid()
	p.state = domain.ProcessRunning
	p.logger = log.WithField("pid", p.pid)
	p.logger.Debug("archive process started", "dir", req.Dir)

	return p, nil
}

// Process is one running archive tool. It is owned by a single request.
type Process struct {
	mu        sync.Mutex
	cmd       platform.Command
	platform  platform.Platform
	stdout    io.ReadCloser
	stderr    *tailBuffer
	pid       int
	state     domain.ProcessState
	signalled bool
	exitCode  int
	logger    *logger.Logger
}

func (p *Process) Pid() int {
	return p.pid
}

func (p *Process) State() domain.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ReadChunk reads at most len(buf) bytes of archive output. The returned
// slice aliases buf. eof is set once the tool has closed its stdout.
func (p *Process) ReadChunk(buf []byte) (chunk []byte, eof bool, err error) {
	n, err := p.stdout.Read(buf)
	switch {
	case err == nil:
		return buf[:n], false, nil
	case errors.Is(err, io.EOF):
		return buf[:n], true, nil
	default:
		return nil, false, fmt.Errorf("read archive output: %w: %w", apperrors.ErrStreamInterrupted, err)
	}
}

// Terminate kills the process group if the process is still RUNNING.
// Calling it again is a no-op. ErrProcessAlreadyExited is returned when the
// process had already gone away before the signal.
func (p *Process) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != domain.ProcessRunning {
		return nil
	}

	err := p.platform.Kill(-p.pid, syscall.SIGKILL)
	if err != nil {
		p.logger.Debug("process group kill failed, signalling leader", "error", err)
		err = p.platform.Kill(p.pid, syscall.SIGKILL)
	}

	switch {
	case err == nil:
		p.signalled = true
		p.state, _ = p.state.Transition(domain.ProcessKilled)
		return nil
	case errors.Is(err, syscall.ESRCH):
		p.state, _ = p.state.Transition(domain.ProcessFinished)
		return apperrors.NewProcessError(p.pid, "terminate", apperrors.ErrProcessAlreadyExited)
	default:
		return apperrors.NewProcessError(p.pid, "terminate", err)
	}
}

// Reap waits for the exit status and releases the process-table entry.
// It must be called exactly once, after Terminate.
func (p *Process) Reap() (int, error) {
	p.mu.Lock()
	if p.state == domain.ProcessReaped {
		p.mu.Unlock()
		return p.exitCode, apperrors.NewProcessError(p.pid, "reap", apperrors.ErrAlreadyReaped)
	}
	p.mu.Unlock()

	waitErr := p.cmd.Wait()
	code := p.cmd.ExitCode()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitCode = code
	p.state, _ = p.state.Transition(domain.ProcessReaped)

	if waitErr == nil {
		return code, nil
	}
	// A death by our own SIGKILL is the expected end of a cancelled transfer
	if p.signalled && code == -1 {
		return code, nil
	}
	return code, apperrors.NewProcessError(p.pid, "reap", waitErr)
}

// Stderr returns the tail of what the tool wrote to stderr. Only complete
// after Reap.
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
