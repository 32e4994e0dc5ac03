package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"plaid-sync/feature/synchronizer"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var staleFormat string

// staleCmd checks stored items without contacting Plaid.
var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List items whose transaction updates look unhealthy",
	Long: `Checks every stored item: an item is stale when its last failed update is
more recent than its last successful one, or when its last successful update is
older than sync.stale_after_days.`,
	RunE: runStale,
}

func init() {
	staleCmd.Flags().StringVar(&staleFormat, "format", synchronizer.FormatText, "Output format: text, json or yaml")
	RootCmd.AddCommand(staleCmd)
}

func runStale(cmd *cobra.Command, args []string) error {
	if err := synchronizer.CheckFormat(staleFormat); err != nil {
		return err
	}
	a, err := bootstrap(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	stored, err := a.store.ListItems(cmd.Context())
	if err != nil {
		return err
	}
	items := synchronizer.StaleItems(stored, time.Now().UTC(), a.cfg.Sync.StaleAfter())

	out := cmd.OutOrStdout()
	switch staleFormat {
	case synchronizer.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case synchronizer.FormatYAML:
		return yaml.NewEncoder(out).Encode(items)
	}
	if len(items) == 0 {
		fmt.Fprintf(out, "All %d items are healthy.\n", len(stored))
		return nil
	}
	return synchronizer.WriteStale(out, items)
}
