package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/internal/cli"
)

func main() {
	// an interrupt cancels the running command's context, which aborts
	// open multipart uploads and stops archive batches
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.New(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsCancelled(err) || stderrors.Is(err, context.Canceled):
		pterm.Warning.WithWriter(os.Stderr).Println("cancelled")
		return 130
	case errors.IsInvalidInput(err):
		pterm.Error.WithWriter(os.Stderr).Println(err)
		return 2
	default:
		pterm.Error.WithWriter(os.Stderr).Println(err)
		return 1
	}
}
