package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var version = "dev"

func parserOptions(ctx context.Context) []kong.Option {
	return []kong.Option{
		kong.Name("stepsync"),
		kong.Description("Push a realistic, monotonically rising daily step count to a remote endpoint."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli, parserOptions(ctx)...)
	if err := kctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		cancel()
		os.Exit(1)
	}
}
