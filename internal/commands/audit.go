package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/auditlog"
)

func newAuditCommand() *cobra.Command {
	var runID string
	var last bool

	cmd := &cobra.Command{
		Use:   "audit [directory]",
		Short: "Print the decisions recorded in logs/audit-log.csv",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			entries, err := auditlog.Read(absDir)
			if err != nil {
				return err
			}
			switch {
			case runID != "":
				entries = auditlog.ForRun(entries, runID)
			case last:
				entries = auditlog.LastRun(entries)
			}
			if entries == nil {
				entries = []auditlog.Entry{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(entries); err != nil {
				return fmt.Errorf("encoding entries: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "only show entries of this run id")
	cmd.Flags().BoolVar(&last, "last", false, "only show entries of the most recent run")

	return cmd
}
