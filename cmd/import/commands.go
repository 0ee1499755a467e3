package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/frametech/leads-dashboard/internal/config"
	"github.com/frametech/leads-dashboard/internal/feed"
	"github.com/frametech/leads-dashboard/internal/models"
	"github.com/frametech/leads-dashboard/internal/store"
)

func newSchemaCmd() *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create the SQLite tables, or install the Postgres change trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				fmt.Fprint(cmd.OutOrStdout(), feed.TriggerSQL)
				return nil
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return applySchema(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the Postgres trigger SQL instead of applying it")
	return cmd
}

func applySchema(ctx context.Context, cfg *config.Config) error {
	if cfg.IsSQLite() {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath()), 0o755); err != nil {
			return err
		}
	}
	rs, err := store.Open(cfg.BackendURL, cfg.APIKey)
	if err != nil {
		return err
	}
	defer rs.Close()

	switch st := rs.(type) {
	case *store.Store:
		// NewStore already migrated
		log.WithField("path", cfg.SQLitePath()).Info("sqlite tables ready")
		return nil
	case *store.PGStore:
		if err := st.Exec(ctx, feed.TriggerSQL); err != nil {
			return fmt.Errorf("install trigger: %w", err)
		}
		log.Info("postgres change trigger installed")
		return nil
	default:
		return fmt.Errorf("schema is not managed for this backend, use the hosted console")
	}
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load FILE",
		Short: "Load a JSON array of leads (plain or zstd-compressed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return load(cmd.Context(), cfg, args[0])
		},
	}
}

func load(ctx context.Context, cfg *config.Config, path string) error {
	rows, err := readLeads(path)
	if err != nil {
		return err
	}

	rs, err := store.Open(cfg.BackendURL, cfg.APIKey)
	if err != nil {
		return err
	}
	defer rs.Close()

	loader, ok := rs.(store.Loader)
	if !ok {
		return fmt.Errorf("backend does not accept imports")
	}
	if err := loader.InsertLeads(ctx, rows); err != nil {
		return err
	}
	log.WithFields(log.Fields{"file": path, "rows": len(rows)}).Info("leads loaded")

	return announce(ctx, cfg)
}

// announce publishes a change event for feeds that have no trigger of
// their own.
func announce(ctx context.Context, cfg *config.Config) error {
	f, err := feed.Open(cfg.ChangesURL, 0)
	if err != nil {
		return err
	}
	pub, ok := f.(feed.Publisher)
	if !ok {
		return nil
	}
	if c, ok := f.(interface{ Close() error }); ok {
		defer c.Close()
	}
	return pub.Publish(ctx)
}

// readLeads decodes an export file. Rows without created_at are stamped
// with the load time.
func readLeads(path string) ([]models.Lead, error) {
	rc, err := openExport(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var rows []models.Lead
	if err := json.NewDecoder(rc).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
	}
	return rows, nil
}
