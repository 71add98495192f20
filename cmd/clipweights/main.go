// Package main provides the clipweights CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/born-ml/clipweights/cmd/clipweights/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := commands.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
