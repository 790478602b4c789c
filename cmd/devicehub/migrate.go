package main

import (
	"context"
	"fmt"
	"io"

	"github.com/nerrad567/devicehub/internal/infrastructure/config"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
)

// runMigrate applies, reverts or lists schema migrations without starting
// the service. With no argument it applies pending migrations.
func runMigrate(ctx context.Context, args []string, cfg *config.Config, out io.Writer) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}
	switch action {
	case "up", "down", "status":
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or status)", action)
	}

	log := logging.New(cfg.Logging, version)
	db, err := connectDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	switch action {
	case "up":
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	case "down":
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("reverting migration: %w", err)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	for _, r := range applied {
		fmt.Fprintf(out, "applied  %s  %s\n", r.Version, r.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}
