package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/lorrc/team-kpi-backend/internal/adapters/secondary/sqlite"
	"github.com/lorrc/team-kpi-backend/internal/config"
)

type migrateOptions struct {
	path  string
	steps int
}

// NewMigrateCmd creates the 'migrate' command with up, down and version
// subcommands.
func NewMigrateCmd(opts *globalOptions) *cobra.Command {
	mo := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the source and directory schema",
		Long: `Apply or roll back the Postgres migrations, including the triggers that
publish change notifications for live aggregation.

With SOURCE_DRIVER=sqlite the schema is created when the database is
opened, so only 'up' is supported.`,
		Example: `  teamkpi migrate up
  teamkpi migrate down --steps 1
  teamkpi migrate version`,
	}
	cmd.PersistentFlags().StringVar(&mo.path, "path", "migrations", "Directory holding the migration files")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts, mo, true)
		},
	}
	up.Flags().IntVar(&mo.steps, "steps", 0, "Apply at most this many migrations (0 applies all)")

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts, mo, false)
		},
	}
	down.Flags().IntVar(&mo.steps, "steps", 0, "Roll back this many migrations (0 rolls back all)")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := migrateConfig(opts)
			if err != nil {
				return err
			}
			if cfg.Source.Driver == config.DriverSQLite {
				return errSQLiteMigrations
			}
			m, err := migrate.New("file://"+mo.path, cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to create migrate instance: %w", err)
			}
			defer m.Close()
			return printVersion(cmd.OutOrStdout(), m)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

var errSQLiteMigrations = errors.New("sqlite schema is managed on open; only 'migrate up' is supported")

func migrateConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateSource(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMigrate(cmd *cobra.Command, opts *globalOptions, mo *migrateOptions, up bool) error {
	cfg, err := migrateConfig(opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if cfg.Source.Driver == config.DriverSQLite {
		if !up {
			return errSQLiteMigrations
		}
		db, err := sqlite.Open(cmd.Context(), cfg.Source.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(out, "sqlite schema ready at %s\n", db.Path())
		return nil
	}

	m, err := migrate.New("file://"+mo.path, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	switch {
	case mo.steps > 0 && up:
		err = m.Steps(mo.steps)
	case mo.steps > 0:
		err = m.Steps(-mo.steps)
	case up:
		err = m.Up()
	default:
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintln(out, "no change")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return printVersion(out, m)
}

func printVersion(out io.Writer, m *migrate.Migrate) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(out, "schema version: none")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		fmt.Fprintf(out, "schema version: %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(out, "schema version: %d\n", version)
	return nil
}
