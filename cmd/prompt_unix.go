//go:build linux || darwin

package cmd

import "golang.org/x/sys/unix"

// withoutEcho runs fn with terminal echo turned off on fd. When fd is not
// a terminal fn runs unchanged.
func withoutEcho(fd int, fn func() error) error {
	if fd < 0 {
		return fn()
	}
	old, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return fn()
	}
	t := *old
	t.Lflag &^= unix.ECHO
	t.Lflag |= unix.ICANON | unix.ISIG
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &t); err != nil {
		return fn()
	}
	defer unix.IoctlSetTermios(fd, ioctlSetTermios, old)
	return fn()
}
