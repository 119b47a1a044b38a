package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/xenking/kitchen-rush/internal/admin"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := admin.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}
