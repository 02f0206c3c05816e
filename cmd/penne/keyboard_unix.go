//go:build linux || darwin

package main

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/penne-app/penne/internal/logger"
)

// listenForKeyboard reads single key presses until q is pressed, then calls
// quit. It returns silently when stdin is not a terminal.
func listenForKeyboard(appLog logger.Logger, issuer tokenIssuer, quit func()) {
	fd := int(os.Stdin.Fd())
	oldState, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return
	}

	// Disable canonical mode and echo; keep output processing so \n still works
	newState := *oldState
	newState.Lflag &^= unix.ICANON | unix.ECHO
	newState.Cc[unix.VMIN] = 1
	newState.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &newState); err != nil {
		return
	}
	defer unix.IoctlSetTermios(fd, ioctlSetTermios, oldState)

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		if !handleKey(buf[0], appLog, issuer) {
			unix.IoctlSetTermios(fd, ioctlSetTermios, oldState)
			quit()
			return
		}
	}
}
