package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/auditlog"
	"github.com/cleared-dev/recon/internal/config"
	"github.com/cleared-dev/recon/internal/dedup"
	"github.com/cleared-dev/recon/internal/importer"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/normalize"
	"github.com/cleared-dev/recon/internal/reconcile"
	"github.com/cleared-dev/recon/internal/recurrence"
	"github.com/cleared-dev/recon/internal/risk"
	"github.com/cleared-dev/recon/internal/store/memory"
	"github.com/cleared-dev/recon/internal/store/sqlite"
)

type reconcileOptions struct {
	existing       string
	existingFormat string
	newFile        string
	format         string
	userID         string
	configPath     string
	dbPath         string
	auditDir       string
}

func newReconcileCommand() *cobra.Command {
	var opts reconcileOptions

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Deduplicate an import, detect recurring payments and score risk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.newFile, "new", "", "CSV file of incoming transactions (required)")
	_ = cmd.MarkFlagRequired("new")
	cmd.Flags().StringVar(&opts.format, "format", "chase", "format of the --new file")
	cmd.Flags().StringVar(&opts.existing, "existing", "", "CSV file of already-recorded transactions")
	cmd.Flags().StringVar(&opts.existingFormat, "existing-format", "generic", "format of the --existing file")
	cmd.Flags().StringVar(&opts.userID, "user", "default", "user the transactions belong to")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to recon.yaml (defaults to ./recon.yaml when present)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database for detected subscriptions and bills (in-memory when empty)")
	cmd.Flags().StringVar(&opts.auditDir, "audit-dir", "", "directory whose logs/audit-log.csv receives the run's decisions")

	return cmd
}

func runReconcile(cmd *cobra.Command, opts reconcileOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	log, err := applyConfigLogLevel(cmd, cfg.Run.LogLevel)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	registry := importer.DefaultRegistry()
	incoming, err := parseInput(registry, opts.format, opts.newFile)
	if err != nil {
		return err
	}
	var existing []model.RawTransaction
	if opts.existing != "" {
		existing, err = parseInput(registry, opts.existingFormat, opts.existing)
		if err != nil {
			return err
		}
	}

	var repo reconcile.Repository
	if opts.dbPath != "" {
		db, err := sqlite.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = db
	} else {
		repo = memory.NewStore()
	}

	norm := normalize.New(cfg.Normalize)
	engine := reconcile.NewEngine(
		norm,
		dedup.New(norm, cfg.Matching, dedup.WithLogger(log)),
		recurrence.New(cfg.Recurrence, recurrence.WithLogger(log)),
		risk.New(cfg.Risk, risk.WithLogger(log)),
		repo,
		reconcile.WithLogger(log),
		reconcile.WithParallelism(cfg.Run.Parallelism),
	)

	rep, err := engine.Run(ctx, reconcile.Input{
		UserID:   opts.userID,
		New:      incoming,
		Existing: existing,
	})
	if err != nil {
		return fmt.Errorf("reconciling: %w", err)
	}

	if opts.auditDir != "" {
		entries := auditlog.FromReport(rep)
		if err := auditlog.Append(opts.auditDir, entries); err != nil {
			return fmt.Errorf("writing audit log: %w", err)
		}
		log.Debug().Int("entries", len(entries)).Str("dir", opts.auditDir).Msg("audit log written")
	}

	return writeReport(cmd.OutOrStdout(), rep)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(config.FileName); err == nil {
		return config.Load(config.FileName)
	}
	return config.Default(), nil
}

func parseInput(registry *importer.Registry, format, path string) ([]model.RawTransaction, error) {
	p := registry.Get(format)
	if p == nil {
		return nil, fmt.Errorf("unknown format %q (known: %v)", format, registry.Formats())
	}
	txns, err := importer.ParseFile(p, path)
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", filepath.Base(path), err)
	}
	if len(txns) == 0 {
		return nil, errors.New("no transactions in " + filepath.Base(path))
	}
	return txns, nil
}

func writeReport(w io.Writer, rep *reconcile.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
