package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"squadfeed/internal/config"
	"squadfeed/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values. The versioned SQL files own the engagement ledgers,
// counters and streaks in every environment; GORM model sync only fills gaps
// on developer machines and in sqlite tests.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// deployedEnvs never get GORM model sync.
var deployedEnvs = map[string]bool{"production": true, "prod": true, "staging": true, "stage": true}

// SchemaPlan is the set of schema steps a process will run at startup.
type SchemaPlan struct {
	Mode        string
	Env         string
	Migrations  bool
	AutoMigrate bool
}

// PlanSchema resolves cfg.DBSchemaMode against cfg.Env. An empty mode means
// hybrid. Asking for auto in a deployed environment is an error so the
// ledger tables are never shaped by model tags in production.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{
		Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		Env:  cfg.Env,
	}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	deployed := deployedEnvs[strings.ToLower(strings.TrimSpace(cfg.Env))]

	switch plan.Mode {
	case SchemaModeSQL:
		plan.Migrations = true
	case SchemaModeHybrid:
		plan.Migrations = true
		plan.AutoMigrate = !deployed
	case SchemaModeAuto:
		if deployed {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=auto is not allowed in %q", cfg.Env)
		}
		plan.AutoMigrate = true
	default:
		return plan, fmt.Errorf("unknown DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// AutoMigrate syncs every model in PersistentModels.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema runs the steps PlanSchema selects for cfg, migrations first.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}
	if plan.Migrations {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("apply sql migrations: %w", err)
		}
	}
	if !plan.AutoMigrate {
		return nil
	}
	middleware.Logger.InfoContext(ctx, "Syncing models",
		slog.String("mode", plan.Mode), slog.String("env", plan.Env))
	if err := AutoMigrate(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("sync models: %w", err)
	}
	return nil
}

// SchemaStatus is a SchemaPlan plus the migration versions recorded in the
// database. Applied and Pending stay empty when the plan skips migrations.
type SchemaStatus struct {
	SchemaPlan
	Applied []int
	Pending []Migration
}

// GetSchemaStatus reports the plan for cfg and which embedded migrations
// have not been applied yet.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan}
	if !plan.Migrations {
		return status, nil
	}

	registered, err := GetMigrations()
	if err != nil {
		return nil, err
	}
	if status.Applied, err = NewMigrationStore(db).GetAppliedMigrations(ctx); err != nil {
		return nil, err
	}
	seen := make(map[int]struct{}, len(status.Applied))
	for _, v := range status.Applied {
		seen[v] = struct{}{}
	}
	for _, m := range registered {
		if _, ok := seen[m.Version]; !ok {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}
