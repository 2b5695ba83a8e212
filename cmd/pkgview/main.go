package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grovetools/pkgview/cli"
	"github.com/grovetools/pkgview/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cmd.NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		verbose, _ := root.PersistentFlags().GetBool("verbose")
		_ = cli.NewErrorHandler(verbose).Handle(err)
		stop()
		os.Exit(1)
	}
}
