// ./main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/uiforge/cmd"
)

// main lets `go run .` and `go install github.com/xkilldash9x/uiforge@latest`
// work; cmd/uiforge adds the interactive shell and crash log.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
