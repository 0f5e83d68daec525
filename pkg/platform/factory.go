//go:build linux || darwin

package platform

import "sync"

var (
	currentPlatform Platform
	platformOnce    sync.Once
)

// NewPlatform returns the process-wide platform implementation
func NewPlatform() Platform {
	platformOnce.Do(func() {
		currentPlatform = newPlatform()
	})
	return currentPlatform
}
