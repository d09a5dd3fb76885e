package migrations

import (
	"context"
	"fmt"

	"letterbox/internal/core"
)

// FeatureName is the migration namespace of the image proxy feature
const FeatureName = "imageproxy"

// Manager handles image proxy migrations
type Manager struct {
	migrationService *core.MigrationService
	logger           *core.Logger
}

// NewManager creates a new image proxy migration manager
func NewManager(db *core.Database, logger *core.Logger) *Manager {
	return &Manager{
		migrationService: core.NewMigrationService(db, logger),
		logger:           logger,
	}
}

// Migrations returns all image proxy migrations in order
func (m *Manager) Migrations() []core.Migration {
	return []core.Migration{
		Migration001CreateImageBlobs,
	}
}

// Migrate applies all pending image proxy migrations
func (m *Manager) Migrate(ctx context.Context) error {
	if err := m.migrationService.Migrate(ctx, m.Migrations()); err != nil {
		return fmt.Errorf("failed to apply image proxy migrations: %w", err)
	}
	m.logger.Info("Image proxy migrations completed successfully")
	return nil
}

// Rollback rolls back the last applied image proxy migration
func (m *Manager) Rollback(ctx context.Context) error {
	if err := m.migrationService.InitMigrations(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return m.migrationService.RollbackLast(ctx, FeatureName, m.Migrations())
}
