//go:build linux || darwin

package platform

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"zipstream/pkg/logger"
)

const PipeDrainTimeout = 2 * time.Second

// BasePlatform provides common functionality shared across platforms
type BasePlatform struct {
	logger *logger.Logger
}

// NewBasePlatform creates a new base platform
func NewBasePlatform() *BasePlatform {
	return &BasePlatform{
		logger: logger.WithField("component", "platform"),
	}
}

func (bp *BasePlatform) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (bp *BasePlatform) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (bp *BasePlatform) Kill(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

func (bp *BasePlatform) ProcessExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	// EPERM means the pid is taken by a process we may not signal
	return err == nil || errors.Is(err, syscall.EPERM)
}

// CreateCommand bounds how long Wait may block on output pipes held open by
// orphaned grandchildren after the command itself has exited.
func (bp *BasePlatform) CreateCommand(name string, args ...string) Command {
	cmd := exec.Command(name, args...)
	cmd.WaitDelay = PipeDrainTimeout
	return &ExecCommand{cmd: cmd}
}

// ExecCommand wraps exec.Cmd to implement Command interface
type ExecCommand struct {
	cmd *exec.Cmd
}

func (e *ExecCommand) Start() error {
	return e.cmd.Start()
}

func (e *ExecCommand) Wait() error {
	return e.cmd.Wait()
}

func (e *ExecCommand) Process() Process {
	if e.cmd.Process == nil {
		return nil
	}
	return &ExecProcess{process: e.cmd.Process}
}

func (e *ExecCommand) StdoutPipe() (io.ReadCloser, error) {
	return e.cmd.StdoutPipe()
}

func (e *ExecCommand) SetStderr(w io.Writer) {
	e.cmd.Stderr = w
}

func (e *ExecCommand) SetDir(dir string) {
	e.cmd.Dir = dir
}

func (e *ExecCommand) SetSysProcAttr(attr *syscall.SysProcAttr) {
	e.cmd.SysProcAttr = attr
}

func (e *ExecCommand) SetEnv(env []string) {
	e.cmd.Env = env
}

func (e *ExecCommand) ExitCode() int {
	if e.cmd.ProcessState == nil {
		return -1
	}
	return e.cmd.ProcessState.ExitCode()
}

// ExecProcess wraps os.Process to implement Process interface
type ExecProcess struct {
	process *os.Process
}

func (p *ExecProcess) Pid() int {
	return p.process.Pid
}

func (p *ExecProcess) Kill() error {
	return p.process.Kill()
}
