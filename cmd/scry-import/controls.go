package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phrazzld/scry-import/internal/queue"
)

// runController is the part of the import service driven by the terminal.
type runController interface {
	Stop() error
	SkipWait() error
	Cancel()
}

// watchSignals requests a resumable stop on the first signal and cancels the
// run on the second.
func watchSignals(ctx context.Context, signals <-chan os.Signal, ctl runController, out io.Writer) {
	count := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			count++
			if count == 1 {
				if err := ctl.Stop(); err == nil {
					fmt.Fprintln(out, "stopping after the current item; press Ctrl+C again to abort")
				}
				continue
			}
			fmt.Fprintln(out, "aborting run")
			ctl.Cancel()
			return
		}
	}
}

// watchInput skips the current wait whenever a line reading "s" arrives.
func watchInput(ctx context.Context, in io.Reader, ctl runController, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if !strings.EqualFold(strings.TrimSpace(scanner.Text()), "s") {
			continue
		}
		switch err := ctl.SkipWait(); {
		case err == nil:
			fmt.Fprintln(out, "skipping wait")
		case errors.Is(err, queue.ErrNotWaiting):
			fmt.Fprintln(out, "nothing is waiting")
		}
	}
}
