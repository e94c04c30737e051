//go:build !windows

package core

import (
	"os"
	"syscall"
)

var jobSignals = []os.Signal{os.Interrupt, syscall.SIGTSTP}
