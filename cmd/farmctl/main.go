package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/harvestdesk/farmops-backend/internal/app"
	"github.com/harvestdesk/farmops-backend/internal/cli"
	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/db"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(cli.ExitCommandError)
	}
	cfg.Service.Kind = "farmctl"

	// stdout belongs to command output; only warnings reach stderr.
	logg := logger.New(logger.Options{
		ServiceName: "farmctl",
		Level:       zerolog.WarnLevel,
		Format:      "console",
		Output:      os.Stderr,
	})

	open := func(ctx context.Context) (*app.Services, func() error, error) {
		dbClient, err := db.Open(ctx, cfg, logg)
		if err != nil {
			return nil, nil, err
		}
		services, err := app.Build(app.Params{DB: dbClient, Config: cfg, Logger: logg})
		if err != nil {
			_ = dbClient.Close()
			return nil, nil, err
		}
		return services, dbClient.Close, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(open, cfg.Orders.TimeZone).ExecuteContext(ctx); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
