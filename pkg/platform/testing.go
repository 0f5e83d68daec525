//go:build linux || darwin

package platform

import (
	"os"
	"sync"
	"syscall"
)

// MockPlatform wraps the real platform for tests: commands still run, but
// spawns and signals are recorded and can be made to fail.
type MockPlatform struct {
	Platform

	mu sync.Mutex

	// Mock behavior flags
	ShouldFailStart bool
	ShouldFailKill  bool

	// Call tracking
	CreateCalls []CreateCall
	KillCalls   []KillCall
	Pids        []int
}

type CreateCall struct {
	Name string
	Args []string
}

type KillCall struct {
	PID    int
	Signal syscall.Signal
}

// NewMockPlatform creates a new mock platform for testing
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{Platform: NewPlatform()}
}

func (mp *MockPlatform) CreateCommand(name string, args ...string) Command {
	mp.mu.Lock()
	mp.CreateCalls = append(mp.CreateCalls, CreateCall{Name: name, Args: args})
	fail := mp.ShouldFailStart
	mp.mu.Unlock()

	return &mockCommand{
		Command: mp.Platform.CreateCommand(name, args...),
		owner:   mp,
		fail:    fail,
	}
}

func (mp *MockPlatform) Kill(pid int, sig syscall.Signal) error {
	mp.mu.Lock()
	mp.KillCalls = append(mp.KillCalls, KillCall{PID: pid, Signal: sig})
	fail := mp.ShouldFailKill
	mp.mu.Unlock()

	if fail {
		return NewPlatformError("mock", "kill", syscall.ESRCH)
	}
	return mp.Platform.Kill(pid, sig)
}

// SpawnCount returns how many commands were created
func (mp *MockPlatform) SpawnCount() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.CreateCalls)
}

// StartedPids returns the pids of every command that started
func (mp *MockPlatform) StartedPids() []int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]int(nil), mp.Pids...)
}

func (mp *MockPlatform) KillCount() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.KillCalls)
}

// Reset clears all call tracking
func (mp *MockPlatform) Reset() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.CreateCalls = mp.CreateCalls[:0]
	mp.KillCalls = mp.KillCalls[:0]
	mp.Pids = mp.Pids[:0]
	mp.ShouldFailStart = false
	mp.ShouldFailKill = false
}

type mockCommand struct {
	Command
	owner *MockPlatform
	fail  bool
}

func (c *mockCommand) Start() error {
	if c.fail {
		return NewPlatformError("mock", "start", os.ErrNotExist)
	}
	if err := c.Command.Start(); err != nil {
		return err
	}
	if p := c.Command.Process(); p != nil {
		c.owner.mu.Lock()
		c.owner.Pids = append(c.owner.Pids, p.Pid())
		c.owner.mu.Unlock()
	}
	return nil
}
