// File: cmd/uiforge/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/xkilldash9x/uiforge/cmd"
	"github.com/xkilldash9x/uiforge/internal/observability"
)

const panicLogFile = "uiforge-panic.log"

const banner = `
  _   _ ___ ___
 | | | |_ _| __|__  _ _ __ _ ___
 | |_| || || _/ _ \| '_/ _' / -_)
  \___/|___|_|\___/|_| \__, \___|
                       |___/
  requirement in, validated UI tests out. Type "help" or "exit".

`

// Injected for tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
	stdin       io.Reader = os.Stdin
)

func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				osExit(0)
				return
			}
			osExit(1)
		}
		return
	}

	if err := runInteractive(ctx, stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}
}

// runInteractive reads commands line by line until EOF or "exit".
func runInteractive(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprint(out, banner)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "uiforge > ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		executeInteractiveCommand(ctx, line, out)
	}
	fmt.Fprintln(out, "Bye.")
	return scanner.Err()
}

// executeInteractiveCommand runs one line on a fresh command tree so flags
// never leak from one command into the next.
func executeInteractiveCommand(ctx context.Context, line string, out io.Writer) {
	rootCmd := cmd.NewRootCommand()
	rootCmd.SetArgs(strings.Fields(line))
	rootCmd.SetOut(out)

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Error: command panicked: %v\n", r)
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
}

// handlePanic records the crash with its stack trace before exiting.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	report := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(report), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: failed to write panic log: %v\n%s\n", err, report)
		osExit(2)
		return
	}
	fmt.Fprintf(os.Stderr, "uiforge crashed. Details were written to %s\n", panicLogFile)
	osExit(2)
}
