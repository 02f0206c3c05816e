package main

import (
	"fmt"

	"github.com/penne-app/penne/internal/logger"
)

// devUserID is the subject of tokens printed by the t shortcut
const devUserID = "dev-user"

// tokenIssuer signs development access tokens
type tokenIssuer interface {
	IssueToken(userID string) (string, error)
}

// cycleLogLevel cycles through debug -> info -> warn -> error
func cycleLogLevel(appLog logger.Logger) string {
	var next string
	switch appLog.GetLevel().String() {
	case "DEBUG":
		next = "info"
	case "INFO":
		next = "warn"
	case "WARN":
		next = "error"
	default:
		next = "debug"
	}
	appLog.SetLevel(logger.ParseLevel(next))
	return next
}

// printKeyboardHelp displays all available keyboard shortcuts
func printKeyboardHelp() {
	fmt.Printf("\n%s%s  Keyboard Shortcuts:%s\n", bold, green, reset)
	fmt.Printf("    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Printf("    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Printf("    %st%s      - Print a development access token\n", cyan, reset)
	fmt.Printf("    %sq%s      - Quit server\n", cyan, reset)
	fmt.Printf("    %s?%s      - Show this help\n\n", cyan, reset)
}

// handleKey performs the action bound to key. It returns false when the
// server should stop.
func handleKey(key byte, appLog logger.Logger, issuer tokenIssuer) bool {
	switch key {
	case 'h', 'H':
		if appLog.IsHTTPLoggingEnabled() {
			appLog.DisableHTTPLogging()
			fmt.Printf("%sHTTP logging disabled%s\n", yellow, reset)
		} else {
			appLog.EnableHTTPLogging()
			fmt.Printf("%sHTTP logging enabled%s\n", green, reset)
		}
	case 'l', 'L':
		fmt.Printf("%sLog level: %s%s%s\n", green, yellow, cycleLogLevel(appLog), reset)
	case 't', 'T':
		token, err := issuer.IssueToken(devUserID)
		if err != nil {
			fmt.Printf("%sCannot issue token: %v%s\n", red, err, reset)
			break
		}
		fmt.Printf("%sAccess token for %s:%s\n%s\n", green, devUserID, reset, token)
	case 'q', 'Q', 0x03: // Ctrl+C in raw mode
		fmt.Printf("%sShutting down server...%s\n", yellow, reset)
		return false
	case '?':
		printKeyboardHelp()
	}
	return true
}
