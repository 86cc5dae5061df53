package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version and commit are set at build time via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes reported by the CLI. Batch outcomes get distinct codes so
// scripts can tell partial failure from an early abort.
const (
	exitCodeOK            = 0
	exitCodeError         = 1
	exitCodePolicyInvalid = 2
	exitCodeNoTargets     = 3
	exitCodeFilesFailed   = 5
	exitCodeStoppedEarly  = 6
)

// exitError carries a specific exit code through cobra's error return.
// A nil cause means the command already printed its output and only the
// process status is left to set.
type exitError struct {
	code  int
	cause error
}

func (e *exitError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error { return e.cause }

func exitWith(code int, cause error) error {
	return &exitError{code: code, cause: cause}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.cause != nil && !errors.Is(exit.cause, context.Canceled) {
			fmt.Fprintln(os.Stderr, exit.cause)
		}
		os.Exit(exit.code)
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCodeError)
}
