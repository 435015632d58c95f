// Command ssohub runs the identity event hub: an ingest-and-dispatch
// service that turns identity provider events into Okta Workflows
// executions, with a REST/websocket gateway and an optional NATS
// ingest path.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "ssohub"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := newRootCommand().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
