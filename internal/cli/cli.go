package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/seido/internal/app"
	"github.com/Additional-Code/seido/internal/config"
	"github.com/Additional-Code/seido/internal/console"
	"github.com/Additional-Code/seido/internal/migration"
	"github.com/Additional-Code/seido/internal/seeder"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root seido CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "seido",
		Short:         "Customer and order database console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newStartCmd(),
		newWorkerCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newReportCmd(),
		newCRUDCmd(),
		newDemoCmd(),
	)
	return root
}

// Execute runs the seido CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"serve"},
		Short:   "Run the HTTP and gRPC services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.HTTP)
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume customer events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, mig *migration.Migrator) error {
				version, err := mig.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
				return nil
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert random customers and orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			ifEmpty, _ := cmd.Flags().GetBool("if-empty")
			var (
				cfg  config.Config
				seed *seeder.Seeder
			)
			return runWithApp(cmd.Context(), fx.Options(app.Tools, fx.Populate(&cfg, &seed)), func(ctx context.Context) error {
				customers, orders := seedSizes(cmd, cfg)
				if !ifEmpty {
					res, err := seed.Seed(ctx, customers, orders)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "seeded %d customers and %d orders\n", res.Customers, res.Orders)
					return nil
				}
				res, seeded, err := seed.SeedIfEmpty(ctx, customers, orders)
				if err != nil {
					return err
				}
				if !seeded {
					fmt.Fprintln(cmd.OutOrStdout(), "database already holds customers; nothing seeded")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d customers and %d orders\n", res.Customers, res.Orders)
				return nil
			})
		},
	}
	addSeedFlags(cmd)
	cmd.Flags().Bool("if-empty", false, "Only seed when no customers are stored")
	return cmd
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print counts, aggregates and joins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd, func(ctx context.Context, c *console.Console) error {
				c.Connection()
				if err := c.Counts(ctx); err != nil {
					return err
				}
				return c.Queries(ctx)
			})
		},
	}
}

func newCRUDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crud",
		Short: "Run the customer create/read/update/delete round trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConsole(cmd, func(ctx context.Context, c *console.Console) error {
				return c.CRUD(ctx)
			})
		},
	}
}

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Migrate, seed an empty database and print the full report",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg  config.Config
				mig  *migration.Migrator
				seed *seeder.Seeder
				con  *console.Console
			)
			opts := fx.Options(app.Tools, fx.Populate(&cfg, &mig, &seed, &con))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				customers, orders := seedSizes(cmd, cfg)
				if _, _, err := seed.SeedIfEmpty(ctx, customers, orders); err != nil {
					return err
				}
				return con.WithOutput(cmd.OutOrStdout()).Run(ctx)
			})
		},
	}
	addSeedFlags(cmd)
	return cmd
}

func addSeedFlags(cmd *cobra.Command) {
	cmd.Flags().Int("customers", 0, "Number of customers to seed (default SEED_CUSTOMERS)")
	cmd.Flags().Int("orders", 0, "Number of orders to seed (default SEED_ORDERS)")
}

func seedSizes(cmd *cobra.Command, cfg config.Config) (int, int) {
	customers, orders := cfg.Report.SeedCustomers, cfg.Report.SeedOrders
	if cmd.Flags().Changed("customers") {
		customers, _ = cmd.Flags().GetInt("customers")
	}
	if cmd.Flags().Changed("orders") {
		orders, _ = cmd.Flags().GetInt("orders")
	}
	return customers, orders
}

func withMigrator(cmd *cobra.Command, fn func(context.Context, *migration.Migrator) error) error {
	var mig *migration.Migrator
	return runWithApp(cmd.Context(), fx.Options(app.Tools, fx.Populate(&mig)), func(ctx context.Context) error {
		return fn(ctx, mig)
	})
}

func withConsole(cmd *cobra.Command, fn func(context.Context, *console.Console) error) error {
	var con *console.Console
	return runWithApp(cmd.Context(), fx.Options(app.Tools, fx.Populate(&con)), func(ctx context.Context) error {
		return fn(ctx, con.WithOutput(cmd.OutOrStdout()))
	})
}

func runUntilDone(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Err(); err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
