package migrations

import (
	"context"
	"fmt"

	"letterbox/internal/core"
)

// FeatureName is the migration namespace of the newsletters feature
const FeatureName = "newsletters"

// Manager handles newsletter feature migrations
type Manager struct {
	migrationService *core.MigrationService
	logger           *core.Logger
}

// NewManager creates a new newsletter migration manager
func NewManager(db *core.Database, logger *core.Logger) *Manager {
	return &Manager{
		migrationService: core.NewMigrationService(db, logger),
		logger:           logger,
	}
}

// Migrations returns all newsletter migrations in order
func (m *Manager) Migrations() []core.Migration {
	return []core.Migration{
		Migration001CreateNewsletterTables,
	}
}

// Migrate applies all pending newsletter migrations
func (m *Manager) Migrate(ctx context.Context) error {
	migrations := m.Migrations()
	m.logger.Info("Starting newsletter migrations", "count", len(migrations))

	if err := m.migrationService.Migrate(ctx, migrations); err != nil {
		return fmt.Errorf("failed to apply newsletter migrations: %w", err)
	}

	m.logger.Info("Newsletter migrations completed successfully")
	return nil
}

// Rollback rolls back the last applied newsletter migration
func (m *Manager) Rollback(ctx context.Context) error {
	if err := m.migrationService.InitMigrations(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return m.migrationService.RollbackLast(ctx, FeatureName, m.Migrations())
}

// GetPendingMigrations returns migrations that haven't been applied yet
func (m *Manager) GetPendingMigrations(ctx context.Context) ([]core.Migration, error) {
	if err := m.migrationService.InitMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	applied, err := m.migrationService.GetAppliedMigrations(ctx, FeatureName)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for _, migration := range applied {
		appliedVersions[migration.Version] = true
	}

	var pending []core.Migration
	for _, migration := range m.Migrations() {
		if !appliedVersions[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}
