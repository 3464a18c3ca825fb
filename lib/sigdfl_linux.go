package lib

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// kernelSigaction mirrors struct sigaction as rt_sigaction(2) takes it.
// SIG_DFL with no flags and an empty mask is all zeroes on every layout.
type kernelSigaction struct {
	handler  uintptr
	flags    uint64
	restorer uintptr
	mask     [2]uint64
}

// setDefaultAction puts sig back to its kernel default action. The Go
// runtime keeps its own handler installed even after signal.Reset, and that
// handler swallows or rewrites most signals sent to the process.
func setDefaultAction(sig unix.Signal) error {
	if sig == unix.SIGKILL {
		return nil
	}
	var act kernelSigaction
	_, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGACTION,
		uintptr(sig), uintptr(unsafe.Pointer(&act)), 0, 8, 0, 0)
	if errno != 0 {
		return fmt.Errorf("reset %s to default action: %w", unix.SignalName(sig), errno)
	}
	return nil
}
