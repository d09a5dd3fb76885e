package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration owned by a feature
type Migration struct {
	Feature     string
	Version     int
	Name        string
	Description string
	UpSQL       string
	DownSQL     string
	AppliedAt   time.Time
}

// MigrationService handles database migrations
type MigrationService struct {
	db     *Database
	logger *Logger
}

// NewMigrationService creates a new migration service
func NewMigrationService(db *Database, logger *Logger) *MigrationService {
	return &MigrationService{
		db:     db,
		logger: logger,
	}
}

// InitMigrations initializes the migrations table
func (m *MigrationService) InitMigrations(ctx context.Context) error {
	createMigrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		feature TEXT NOT NULL,
		version INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (feature, version)
	);`

	_, err := m.db.ExecWithTimeout(ctx, createMigrationsTable)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

// GetAppliedMigrations returns the applied migrations of a feature, oldest first
func (m *MigrationService) GetAppliedMigrations(ctx context.Context, feature string) ([]Migration, error) {
	query := `SELECT feature, version, name, description, applied_at FROM migrations WHERE feature = ? ORDER BY version`

	rows, cancel, err := m.db.QueryWithTimeout(ctx, query, feature)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer cancel()
	defer rows.Close()

	var migrations []Migration
	for rows.Next() {
		var migration Migration
		var description sql.NullString
		err := rows.Scan(&migration.Feature, &migration.Version, &migration.Name, &description, &migration.AppliedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		migration.Description = description.String
		migrations = append(migrations, migration)
	}

	return migrations, rows.Err()
}

// IsMigrationApplied checks if a migration has been applied
func (m *MigrationService) IsMigrationApplied(ctx context.Context, feature string, version int) (bool, error) {
	var count int
	err := m.db.QueryRowWithTimeout(ctx,
		`SELECT COUNT(*) FROM migrations WHERE feature = ? AND version = ?`,
		[]any{feature, version}, &count)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}

	return count > 0, nil
}

// ApplyMigration applies a single migration
func (m *MigrationService) ApplyMigration(ctx context.Context, migration Migration) error {
	applied, err := m.IsMigrationApplied(ctx, migration.Feature, migration.Version)
	if err != nil {
		return err
	}
	if applied {
		m.logger.Debug("Migration already applied", "feature", migration.Feature, "version", migration.Version)
		return nil
	}

	err = m.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.UpSQL); err != nil {
			return fmt.Errorf("failed to execute migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		insertQuery := `INSERT INTO migrations (feature, version, name, description) VALUES (?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insertQuery, migration.Feature, migration.Version, migration.Name, migration.Description); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Applied migration", "feature", migration.Feature, "version", migration.Version, "name", migration.Name)
	return nil
}

// RollbackMigration rolls back a single migration
func (m *MigrationService) RollbackMigration(ctx context.Context, migration Migration) error {
	applied, err := m.IsMigrationApplied(ctx, migration.Feature, migration.Version)
	if err != nil {
		return err
	}
	if !applied {
		m.logger.Info("Migration not applied, cannot rollback", "feature", migration.Feature, "version", migration.Version)
		return nil
	}

	err = m.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM migrations WHERE feature = ? AND version = ?`, migration.Feature, migration.Version); err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", migration.Version, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Rolled back migration", "feature", migration.Feature, "version", migration.Version, "name", migration.Name)
	return nil
}

// Migrate applies every pending migration in order
func (m *MigrationService) Migrate(ctx context.Context, migrations []Migration) error {
	if err := m.InitMigrations(ctx); err != nil {
		return err
	}

	for _, migration := range migrations {
		if err := m.ApplyMigration(ctx, migration); err != nil {
			return err
		}
	}
	return nil
}

// RollbackLast rolls back the most recent applied migration of a feature
func (m *MigrationService) RollbackLast(ctx context.Context, feature string, known []Migration) error {
	applied, err := m.GetAppliedMigrations(ctx, feature)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return fmt.Errorf("no %s migrations to rollback", feature)
	}

	last := applied[len(applied)-1]
	for _, migration := range known {
		if migration.Version == last.Version {
			return m.RollbackMigration(ctx, migration)
		}
	}
	return fmt.Errorf("applied %s migration %d is unknown to this build", feature, last.Version)
}
