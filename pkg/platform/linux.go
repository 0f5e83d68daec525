//go:build linux

package platform

import (
	"runtime"
	"syscall"
)

// LinuxPlatform provides Linux-specific implementations
type LinuxPlatform struct {
	*BasePlatform
}

// CreateProcessGroup puts the child in its own group and asks the kernel to
// kill it if the server thread that forked it dies first.
func (lp *LinuxPlatform) CreateProcessGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pgid:      0,
		Pdeathsig: syscall.SIGKILL,
	}
}

func (lp *LinuxPlatform) GetInfo() *Info {
	return &Info{
		OS:                "linux",
		Architecture:      runtime.GOARCH,
		SupportsPdeathsig: true,
	}
}

func newPlatform() Platform {
	return &LinuxPlatform{BasePlatform: NewBasePlatform()}
}

var _ Platform = (*LinuxPlatform)(nil)
