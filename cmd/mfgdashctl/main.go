package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/mfgdash/mfgdash/internal/cli/mfgdashctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("MFGDASH_CLI_TIMEOUT")), 2*time.Minute)
	stdoutFd := int(os.Stdout.Fd())
	pretty := term.IsTerminal(stdoutFd)
	width := 0
	if pretty {
		if w, _, err := term.GetSize(stdoutFd); err == nil {
			width = w
		}
	}
	options := mfgdashctl.Options{
		BaseURL: envOr("MFGDASH_API_URL", "http://localhost:8080"),
		Timeout: timeout,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Pretty:  pretty,
		Width:   width,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := mfgdashctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid MFGDASH_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
