//go:build !linux
// +build !linux

package main

// stderrIsTerminal has no portable implementation outside the
// golang.org/x/sys/unix ioctl used on linux; color output is simply
// disabled elsewhere rather than guessing.
func stderrIsTerminal() bool {
	return false
}
