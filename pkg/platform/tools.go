//go:build tools

package platform

import (
	_ "github.com/maxbrunsfeld/counterfeiter/v6"
)
