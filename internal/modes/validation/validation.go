package validation

import (
	"fmt"
	"runtime"

	"zipstream/pkg/config"
	"zipstream/pkg/logger"
	"zipstream/pkg/platform"
)

// PlatformValidator checks that the host can run archive processes for the
// given configuration.
type PlatformValidator struct {
	platform platform.Platform
	logger   *logger.Logger
}

func NewPlatformValidator(p platform.Platform) *PlatformValidator {
	return &PlatformValidator{
		platform: p,
		logger:   logger.WithField("component", "platform-validator"),
	}
}

// ValidatePlatformRequirements checks the OS, the archive tool and the
// storage root.
func (pv *PlatformValidator) ValidatePlatformRequirements(cfg config.ArchiveConfig) error {
	switch runtime.GOOS {
	case "linux":
	case "darwin":
		pv.logger.Warn("macOS detected - archive processes are not killed if the server itself dies")
	default:
		return fmt.Errorf("unsupported platform: %s (process groups required)", runtime.GOOS)
	}

	path, err := pv.platform.LookPath(cfg.Command)
	if err != nil {
		return fmt.Errorf("archive command %q not found: %w", cfg.Command, err)
	}

	info, err := pv.platform.Stat(cfg.StorageRoot)
	if err != nil {
		return fmt.Errorf("storage root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", cfg.StorageRoot)
	}

	pi := pv.platform.GetInfo()
	pv.logger.Info("platform requirements validated",
		"os", pi.OS,
		"arch", pi.Architecture,
		"pdeathsig", pi.SupportsPdeathsig,
		"command", path,
		"storageRoot", cfg.StorageRoot)
	return nil
}
