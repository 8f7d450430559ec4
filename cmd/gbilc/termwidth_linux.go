//go:build linux
// +build linux

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// stderrIsTerminal reports whether standard error is attached to a
// terminal, by asking the kernel for its window size. A successful
// ioctl means a real tty is on the other end; ENOTTY (or any other
// error, e.g. output redirected to a file or pipe) means it is not.
// Used to decide whether compilerr.Error.Format should emit ANSI
// color codes.
func stderrIsTerminal() bool {
	_, err := unix.IoctlGetWinsize(int(os.Stderr.Fd()), unix.TIOCGWINSZ)
	return err == nil
}
