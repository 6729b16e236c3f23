package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raoulx24/wandering-echo/internal/cli"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	// Graceful shutdown: in-flight transfers are killed and the root
	// filesystem is still unmounted.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	code := cli.Execute(ctx)
	cancel()
	os.Exit(code)
}
