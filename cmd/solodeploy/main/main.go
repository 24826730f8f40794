package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arthur-debert/solodeploy/cmd/solodeploy"
	"github.com/arthur-debert/solodeploy/pkg/style"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := solodeploy.NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		msg := fmt.Sprintf("Error: %v", err)
		if style.IsTerminal(os.Stderr) {
			msg = style.ErrorStyle.Render(msg)
		}
		fmt.Fprintln(os.Stderr, msg)
		stop()
		os.Exit(1)
	}
}
