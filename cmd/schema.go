package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// schemaCmd groups database maintenance commands.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the database schema",
}

var schemaMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.logger.Sync()
		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
		return nil
	},
}

var schemaVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every table has the expected columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.logger.Sync()
		if err := a.store.Verify(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Schema OK.")
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaMigrateCmd, schemaVerifyCmd)
	RootCmd.AddCommand(schemaCmd)
}
