package admin

import (
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/kitchen-rush/db"
	"github.com/xenking/kitchen-rush/internal/domain/catalog"
	"github.com/xenking/kitchen-rush/internal/storage/postgres"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *Options) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if !statusOnly {
				if err := postgres.Migrate(ctx, pool); err != nil {
					return errors.Wrap(err, "migrate")
				}
			}
			v, err := postgres.MigrationStatus(ctx, pool)
			if err != nil {
				return errors.Wrap(err, "status")
			}
			opts.Logger().Info("Schema version", zap.Int64("version", v))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return err
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "only print the current schema version")
	return cmd
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *Options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the ingredient and recipe catalog",
		Long: `Upsert the ingredient and recipe catalog.

Without --file the catalog embedded in the binary is used. The database is
migrated first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data := db.Catalog
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return errors.Wrap(err, "read catalog file")
				}
				data = b
			}
			seed, err := catalog.ParseSeed(data)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.Migrate(ctx, pool); err != nil {
				return errors.Wrap(err, "migrate")
			}
			if err := postgres.NewCatalogRepository(pool).Seed(ctx, seed); err != nil {
				return errors.Wrap(err, "seed")
			}
			opts.Logger().Info("Catalog seeded",
				zap.Int("ingredients", len(seed.Ingredients)),
				zap.Int("recipes", len(seed.Recipes)),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "catalog YAML file")
	return cmd
}
