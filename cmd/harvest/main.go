package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/harvest/internal/cli"
)

func main() {
	// The first interrupt cancels the running job, which is then settled
	// and persisted; a second one kills the process
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	cli.Execute(ctx)
}
