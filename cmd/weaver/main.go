// Command weaver watches a markdown vault and runs durable workflows on its
// changes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/weave-nn/weaver/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = ""

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	// cobra has already printed the error.
	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
