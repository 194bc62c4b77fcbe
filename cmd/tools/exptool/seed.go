package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codr1/Excursions/internal/db"
	"github.com/codr1/Excursions/internal/seed"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := databasePath()
			if err != nil {
				return err
			}
			database, err := db.New(path)
			if err != nil {
				return err
			}
			defer database.Close()

			catalog, err := seed.DefaultCatalog()
			if err != nil {
				return fmt.Errorf("load seed catalog: %w", err)
			}

			ctx := log.Logger.WithContext(cmd.Context())
			result, err := seed.Load(ctx, database, catalog)
			if err != nil {
				return err
			}
			if result.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "Database already has experiences; nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users, %d experiences, %d blog posts\n",
				result.Users, result.Experiences, result.BlogPosts)
			return nil
		},
	}
}
