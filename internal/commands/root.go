package commands

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/buildinfo"
	"github.com/cleared-dev/recon/internal/logger"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var logLevel, logFormat string

	rootCmd := &cobra.Command{
		Use:     "recon",
		Short:   "Transaction reconciliation: dedup, recurring detection and risk scoring",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
			if err != nil {
				return err
			}
			cmd.SetContext(logger.WithContext(cmd.Context(), log))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error); overrides run.log_level in recon.yaml")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newReconcileCommand())
	rootCmd.AddCommand(newAuditCommand())

	return rootCmd
}

func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	switch format {
	case "", "console":
		return logger.New(w, level)
	case "json":
		return logger.NewJSON(w, level)
	}
	return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
}

// applyConfigLogLevel rebuilds the context logger at level unless --log-level was given.
func applyConfigLogLevel(cmd *cobra.Command, level string) (zerolog.Logger, error) {
	if level == "" || cmd.Flags().Changed("log-level") {
		return logger.FromContext(cmd.Context()), nil
	}
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return zerolog.Nop(), err
	}
	log, err := newLogger(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("run.log_level: %w", err)
	}
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return log, nil
}
