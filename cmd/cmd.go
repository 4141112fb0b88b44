// Package cmd provides the campusagent CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE chat streaming
//   - migrate: run database migrations and exit
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"campusagent/internal/log"
)

// Execute is the main entry point for the campusagent CLI.
func Execute() error {
	logger := newLogger()

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "migrate":
		return runMigrate(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// newLogger builds the process logger. DEBUG enables debug level,
// LOG_FORMAT=json switches to JSON output.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("LOG_FORMAT") == "json" {
		cfg.JSON = true
	}
	return log.New(cfg)
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("campusagent - Campus administration API with a conversational agent")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  campusagent serve      Start the HTTP API server")
	fmt.Println("  campusagent migrate    Run database migrations and exit")
	fmt.Println("  campusagent --version  Show version information")
	fmt.Println("  campusagent --help     Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Gemini API key (default provider)")
	fmt.Println("  OPENAI_API_KEY     OpenAI API key (provider: openai)")
	fmt.Println("  JWT_SECRET         Required: token signing secret (32+ chars)")
	fmt.Println("  DATABASE_URL       Optional: overrides discrete postgres settings")
	fmt.Println("  DEBUG              Optional: enable debug logging")
	fmt.Println("  LOG_FORMAT         Optional: set to 'json' for JSON logs")
}
