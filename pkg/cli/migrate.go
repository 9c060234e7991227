package cli

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nimburion/recordlock/pkg/config"
	"github.com/nimburion/recordlock/pkg/locking/policystore/sqlsource"
	"github.com/nimburion/recordlock/pkg/migrate"
)

// errNotSQLSource is returned by migrate when policies are not kept in a database.
var errNotSQLSource = errors.New("migrate requires locking.source to be sql")

func newMigrateCommand(load loadFunc) *cobra.Command {
	// open returns the migrator of the configured policy table and a func
	// closing its connection.
	open := func(cmd *cobra.Command) (*migrate.Migrator, *Environment, func() error, error) {
		env, err := load(cmd.Flags())
		if err != nil {
			return nil, nil, nil, err
		}
		cfg := env.Config
		if cfg.Locking.Source != config.PolicySourceSQL {
			return nil, nil, nil, errNotSQLSource
		}
		src, err := sqlsource.New(sqlsource.Config{
			Driver:          cfg.Database.Driver,
			URL:             cfg.Database.URL,
			Table:           cfg.Database.Table,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			QueryTimeout:    cfg.Database.QueryTimeout,
		}, env.Log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sql policy source: %w", err)
		}
		m, err := src.Migrator()
		if err != nil {
			return nil, nil, nil, errors.Join(err, src.Close())
		}
		return m, env, src.Close, nil
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the lock policy table schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, env, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			n, err := m.Up(cmd.Context())
			if n > 0 {
				env.Log.Info("migrations applied", "count", n, "table", env.Config.Database.Table)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return err
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Revert the newest migrations, one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil || parsed < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = parsed
			}
			m, env, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			n, err := m.Down(cmd.Context(), steps)
			if n > 0 {
				env.Log.Info("migrations reverted", "count", n, "table", env.Config.Database.Table)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "reverted %d migration(s)\n", n)
			return err
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, closeFn, err := open(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			entries, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tSTATE")
			for _, e := range entries {
				state := "pending"
				if e.Applied {
					state = "applied"
				}
				fmt.Fprintf(w, "%04d\t%s\t%s\n", e.Version, e.Name, state)
			}
			return w.Flush()
		},
	})

	return migrateCmd
}
