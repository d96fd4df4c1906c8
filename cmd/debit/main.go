// Package main starts the debit service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	platformcmd "github.com/louisbranch/debitflow/internal/platform/cmd"
	"github.com/louisbranch/debitflow/internal/services/debit/app"
)

func main() {
	var cfg app.Config
	fs := flag.NewFlagSet(platformcmd.ServiceDebit, flag.ExitOnError)
	if err := platformcmd.ParseConfigFromArgs(&cfg, fs, os.Args[1:]); err != nil {
		log.Fatalf("parse config: %v", err)
	}
	log.SetPrefix("[DEBIT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceDebit, func(ctx context.Context) error {
		return app.Run(ctx, cfg)
	}); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
