package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"notulio/internal/config"
	"notulio/internal/store"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Open the SQLite database and apply the schema.

The schema is also applied automatically on serve; this command exists to
prepare a data directory ahead of time or verify a database is usable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			st, err := store.NewStore(cfg.Database.Directory)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			defer func() { _ = st.Close() }()

			if err := st.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("database not reachable after migration: %w", err)
			}

			fmt.Printf("Database ready in %s\n", cfg.Database.Directory)
			return nil
		},
	}
}
