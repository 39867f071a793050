// Command creel is the CLI entry point: resolves and installs the artifacts
// named by a creel.toml configuration file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmilitzer/creel/cmd/creel/command"
	"github.com/mmilitzer/creel/internal/app"
)

func main() {
	container, err := app.NewOSContainer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(4)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(command.Run(ctx, container))
}
