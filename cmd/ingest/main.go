// ingest runs a single ingestion pass outside the server, either for one
// organization or for every active one.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"hostel-ingest-service/internal/app"
	"hostel-ingest-service/internal/infrastructure/config"
	"hostel-ingest-service/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var orgID uint
	var all bool

	flagSet := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
	flagSet.UintVar(&orgID, "org", 0, "organization to ingest")
	flagSet.BoolVar(&all, "all", false, "ingest every active organization")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if (orgID == 0) == !all {
		return fmt.Errorf("exactly one of --org or --all is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer svc.Close(context.Background())

	if all {
		return svc.Scheduler.RunOnce(ctx)
	}

	created, err := svc.Orchestrator.Run(ctx, orgID)
	if err != nil {
		return err
	}
	fmt.Printf("organization %d: %d reservations created\n", orgID, created)
	return nil
}
