package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mobile-next/mobilecv/cli"
	"github.com/mobile-next/mobilecv/commands"
	"github.com/mobile-next/mobilecv/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()

	// stop scrcpy sessions and forwards opened by the command
	if cleanupErr := commands.GetRegistry().CleanupAll(); cleanupErr != nil {
		utils.Warn("cleanup failed: %v", cleanupErr)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
