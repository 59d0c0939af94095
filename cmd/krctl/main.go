package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/krpace/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, os.Stdout, os.Stderr); err != nil {
		os.Stderr.WriteString("krctl: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
