//go:build darwin

package platform

import (
	"runtime"
	"syscall"
)

// DarwinPlatform provides macOS-specific implementations
type DarwinPlatform struct {
	*BasePlatform
}

// CreateProcessGroup has no parent-death signal on macOS; the supervisor's
// teardown is the only guarantee there.
func (dp *DarwinPlatform) CreateProcessGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

func (dp *DarwinPlatform) GetInfo() *Info {
	return &Info{
		OS:           "darwin",
		Architecture: runtime.GOARCH,
	}
}

func newPlatform() Platform {
	dp := &DarwinPlatform{BasePlatform: NewBasePlatform()}
	dp.logger.Debug("running without parent-death signal support")
	return dp
}

var _ Platform = (*DarwinPlatform)(nil)
