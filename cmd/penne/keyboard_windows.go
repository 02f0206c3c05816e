//go:build windows

package main

import (
	"os"

	"github.com/penne-app/penne/internal/logger"
)

// listenForKeyboard reads keys line-buffered (terminal raw mode is not set
// up on Windows)
func listenForKeyboard(appLog logger.Logger, issuer tokenIssuer, quit func()) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n == 0 || buf[0] == '\n' || buf[0] == '\r' {
			continue
		}
		if !handleKey(buf[0], appLog, issuer) {
			quit()
			return
		}
	}
}
