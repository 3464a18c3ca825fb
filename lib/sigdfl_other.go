//go:build !linux

package lib

import (
	"os/signal"

	"golang.org/x/sys/unix"
)

func setDefaultAction(sig unix.Signal) error {
	signal.Reset(sig)
	return nil
}
