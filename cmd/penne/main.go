package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/penne-app/penne/internal/app"
	"github.com/penne-app/penne/internal/config"
	"github.com/penne-app/penne/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

var (
	version = "dev"
)

// showBanner prints the logo and the active store
func showBanner(cfg *config.Config) {
	border := strings.Repeat("═", 44)
	logo := []string{
		"   ____  ___  ____  ____  ___ ",
		"  |  _ \\/ _ \\|  _ \\|  _ \\/ _ \\",
		"  | |_)   __/| | | | | | |  __/",
		"  | .__/\\___||_| |_|_| |_|\\___|",
		"  |_|       dining hall backend",
	}

	fmt.Printf("\n  %s╔%s╗%s\n", cyan, border, reset)
	for _, line := range logo {
		fmt.Printf("  %s║%s%-44s%s║%s\n", cyan, yellow, line, cyan, reset)
	}
	fmt.Printf("  %s╚%s╝%s\n", cyan, border, reset)
	fmt.Printf("  %sversion%s %s  %sstore%s %s\n\n", bold, reset, version, bold, reset, cfg.Store)
}

func main() {
	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides SQLITE_PATH)")
	store := flag.String("store", "", "Store backend: sqlite, postgres, remote (overrides PENNE_STORE)")
	logLevel := flag.String("loglevel", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	logJSON := flag.Bool("logjson", false, "Log as JSON")
	noBanner := flag.Bool("nobanner", false, "Skip the startup banner")
	noKeyboard := flag.Bool("nokeyboard", false, "Disable keyboard shortcuts")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `penne - campus dining hall backend

Usage:
  penne [options]

Settings come from the environment (and a .env file in the working
directory); flags override them.

Options:
  -port int       HTTP server port
  -db string      SQLite database path
  -store string   Store backend: sqlite, postgres, remote
  -loglevel str   Log level: debug, info, warn, error
  -logjson        Log as JSON
  -nobanner       Skip the startup banner
  -nokeyboard     Disable keyboard shortcuts
  -version        Show version and exit
  -help           Show this help message

Keyboard Shortcuts (when enabled):
  h              Toggle HTTP request logging
  l              Cycle log level (debug → info → warn → error)
  t              Print a development access token
  q              Quit server
  ?              Show keyboard help

Examples:
  penne                                   # sqlite penne.db on port 8080
  penne -port 9000 -db /data/penne.db     # custom port and database
  PENNE_STORE=remote BACKEND_URL=https://xyz.example.co BACKEND_API_KEY=... penne

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("penne %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%sConfiguration error: %v%s\n", red, err, reset)
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "db":
			cfg.SQLitePath = *dbPath
		case "store":
			cfg.Store = strings.ToLower(*store)
		case "loglevel":
			cfg.LogLevel = *logLevel
		case "logjson":
			cfg.LogJSON = *logJSON
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%sConfiguration error: %v%s\n", red, err, reset)
		os.Exit(2)
	}

	if !*noBanner {
		showBanner(cfg)
	}

	format := logger.FormatText
	if cfg.LogJSON {
		format = logger.FormatJSON
	}
	appLog := logger.NewWithOptions(os.Stdout, logger.ParseLevel(cfg.LogLevel), format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, appLog, cfg)
	if err != nil {
		appLog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	if !*noKeyboard {
		printKeyboardHelp()
		go listenForKeyboard(appLog, a, stop)
	} else {
		fmt.Printf("\n%sKeyboard shortcuts disabled (use -nokeyboard=false to enable)%s\n\n", yellow, reset)
	}

	if err := a.Run(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
		appLog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
