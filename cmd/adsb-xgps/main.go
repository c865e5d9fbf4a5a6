package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	cfg, opts, err := parseArgs(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "adsb-xgps: %v\n", err)
		return 1
	}

	if opts.summarize != "" {
		if err := printCaptureSummary(os.Stdout, opts.summarize); err != nil {
			fmt.Fprintf(os.Stderr, "adsb-xgps: summarize failed: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "adsb-xgps: %v\n", err)
		return 1
	}
	return 0
}
