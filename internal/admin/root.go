// Package admin implements the kitchen-admin command line.
package admin

import (
	"context"
	"os"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/kitchen-rush/internal/storage/postgres"
)

// Options holds the global flags.
type Options struct {
	DatabaseURL string
	Verbose     bool

	lg *zap.Logger
}

// Logger returns the command logger, a no-op before the root pre-run.
func (o *Options) Logger() *zap.Logger {
	if o.lg == nil {
		return zap.NewNop()
	}
	return o.lg
}

// connect opens the database named by --database-url or DATABASE_URL.
func (o *Options) connect(ctx context.Context) (*pgxpool.Pool, error) {
	url := o.DatabaseURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, errors.New("database URL is required: set --database-url or DATABASE_URL")
	}
	pool, err := postgres.NewPool(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	return pool, nil
}

// NewRootCommand creates the kitchen-admin root command.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "kitchen-admin",
		Short:         "Operate the Kitchen Rush database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level := zapcore.InfoLevel
			if opts.Verbose {
				level = zapcore.DebugLevel
			}
			cfg := zap.NewProductionConfig()
			cfg.Level = zap.NewAtomicLevelAt(level)
			lg, err := cfg.Build()
			if err != nil {
				return errors.Wrap(err, "build logger")
			}
			opts.lg = lg
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = opts.Logger().Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewExportLedgerCommand(opts))
	cmd.AddCommand(NewIssueTokenCommand(opts))

	return cmd
}
