// nsock - an event-driven TCP socket tool with optional SSH gateway
// connects.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nsock/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "nsock: %v\n", err)
		os.Exit(1)
	}
}
