package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/db"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/migrate"
)

type migrateCmd struct {
	cfg  *config.Config
	logg *logger.Logger
	dir  string
	disk bool
	args []string
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	m := &migrateCmd{
		cfg: cfg,
		logg: logger.New(logger.Options{
			ServiceName: "migrate",
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
			Format:      cfg.App.LogFormat,
			Output:      os.Stderr,
		}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.command().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		stop()
		os.Exit(1)
	}
}

func (m *migrateCmd) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the farmops postgres schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&m.dir, "dir", migrate.DefaultDir, "migrations directory on disk")
	root.PersistentFlags().BoolVar(&m.disk, "from-disk", false, "apply migrations from --dir instead of the embedded set")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: m.withRunner(func(ctx context.Context, r *migrate.Runner) error {
				applied, err := r.Up(ctx)
				m.report(ctx, applied)
				return err
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: m.withRunner(func(ctx context.Context, r *migrate.Runner) error {
				applied, err := r.Down(ctx)
				m.report(ctx, applied)
				return err
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: m.withRunner(func(ctx context.Context, r *migrate.Runner) error {
				states, err := r.Status(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tAPPLIED AT\tFILE")
				for _, s := range states {
					at := "pending"
					if s.Applied {
						at = s.AppliedAt.UTC().Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, at, s.Path)
				}
				return tw.Flush()
			}),
		},
		&cobra.Command{
			Use:   "version [YYYYMMDDHHMMSS]",
			Short: "Print the schema version, or migrate up or down to the given one",
			Args:  cobra.MaximumNArgs(1),
			RunE: m.withRunner(func(ctx context.Context, r *migrate.Runner) error {
				if len(m.args) == 0 {
					v, err := r.Version(ctx)
					if err != nil {
						return err
					}
					fmt.Println(v)
					return nil
				}
				target, err := migrate.ParseVersion(m.args[0])
				if err != nil {
					return err
				}
				applied, err := r.To(ctx, target)
				m.report(ctx, applied)
				return err
			}),
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Write an empty migration into --dir",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := migrate.NewFile(m.dir, args[0], time.Now())
				if err != nil {
					return m.fail(cmd.Context(), "create migration", err)
				}
				fmt.Println(path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check migration names and goose annotations in --dir",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := migrate.ValidateDir(m.dir); err != nil {
					return m.fail(cmd.Context(), "validate migrations", err)
				}
				fmt.Println("migrations ok")
				return nil
			},
		},
	)
	return root
}

// withRunner connects to postgres for commands that touch the schema.
func (m *migrateCmd) withRunner(fn func(context.Context, *migrate.Runner) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		m.args = args
		ctx := m.logg.WithFields(cmd.Context(), map[string]any{
			"env": m.cfg.App.Env,
			"cmd": cmd.Name(),
		})
		if !m.cfg.DB.Configured() {
			return m.fail(ctx, "postgres is required", db.ErrNotConfigured())
		}

		client, err := db.New(ctx, m.cfg.DB, m.logg)
		if err != nil {
			return m.fail(ctx, "connect database", err)
		}
		defer client.Close()

		sqlDB, err := client.DB().DB()
		if err != nil {
			return m.fail(ctx, "connect database", err)
		}
		runner, err := m.runner(sqlDB)
		if err != nil {
			return m.fail(ctx, "load migrations", err)
		}
		if err := fn(ctx, runner); err != nil {
			return m.fail(ctx, cmd.Name()+" failed", err)
		}
		return nil
	}
}

func (m *migrateCmd) runner(sqlDB *sql.DB) (*migrate.Runner, error) {
	if m.disk {
		return migrate.NewRunner(sqlDB, os.DirFS(m.dir))
	}
	return migrate.NewRunner(sqlDB, nil)
}

func (m *migrateCmd) report(ctx context.Context, applied []migrate.Applied) {
	for _, a := range applied {
		m.logg.Info(m.logg.WithFields(ctx, map[string]any{
			"version":     a.Version,
			"direction":   a.Direction,
			"duration_ms": a.Duration.Milliseconds(),
		}), a.Path)
	}
}

func (m *migrateCmd) fail(ctx context.Context, msg string, err error) error {
	m.logg.Error(ctx, msg, err)
	return err
}
