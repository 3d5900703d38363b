// Command reconcile enriches CSV entries through a lookup module.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/Sternrassler/lookup-reconciler/pkg/reconciler/companieshouse"
	_ "github.com/Sternrassler/lookup-reconciler/pkg/reconciler/opencorporates"
)

// Version is set at build time.
var Version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
