// Package main provides the calendar command-line client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	platformcmd "github.com/slotwise/slotwise/internal/platform/cmd"
	"github.com/slotwise/slotwise/internal/platform/config"
	"github.com/slotwise/slotwise/internal/tools/calendarcli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceCalendar, func(ctx context.Context) error {
		return calendarcli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	})
	if err != nil {
		config.Exitf("Error: %v", err)
	}
}
