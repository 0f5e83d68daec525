package platform

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

import (
	"io"
	"os"
	"syscall"
)

// Platform is the slice of the operating system the archive pipeline touches:
// launching commands, signalling process groups and probing the process table.
//
//counterfeiter:generate . Platform
type Platform interface {
	CommandFactory

	// Kill sends a signal to a process or process group
	// - Positive pid: the specific process
	// - Negative pid: the whole process group
	Kill(pid int, sig syscall.Signal) error
	CreateProcessGroup() *syscall.SysProcAttr
	// ProcessExists reports whether pid still has a process-table entry.
	// A zombie counts as existing until it is reaped.
	ProcessExists(pid int) bool
	Stat(name string) (os.FileInfo, error)
	LookPath(file string) (string, error)
	GetInfo() *Info
}

//counterfeiter:generate . CommandFactory
type CommandFactory interface {
	CreateCommand(name string, args ...string) Command
}

//counterfeiter:generate . Command
type Command interface {
	Start() error
	Wait() error
	Process() Process
	StdoutPipe() (io.ReadCloser, error)
	SetStderr(w io.Writer)
	SetDir(dir string)
	SetSysProcAttr(attr *syscall.SysProcAttr)
	SetEnv(env []string)
	// ExitCode is -1 until Wait returns, and when the process died by signal.
	ExitCode() int
}

//counterfeiter:generate . Process
type Process interface {
	Pid() int
	Kill() error
}

// Info describes the host the server runs on
type Info struct {
	OS                string
	Architecture      string
	SupportsPdeathsig bool
}
