// Package schema applies versioned migrations to SQL stores. The applied
// version lives in the database itself, so opening a store twice or from
// two binaries is safe.
package schema

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Migration upgrades the schema to Version
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, tx *sql.Tx) error
}

// Versioner reads and writes the applied schema version inside a transaction
type Versioner interface {
	Version(ctx context.Context, tx *sql.Tx) (int, error)
	SetVersion(ctx context.Context, tx *sql.Tx, version int) error
}

// UserVersion keeps the version in SQLite's user_version header field
type UserVersion struct{}

func (UserVersion) Version(ctx context.Context, tx *sql.Tx) (int, error) {
	var v int
	err := tx.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v)
	return v, err
}

func (UserVersion) SetVersion(ctx context.Context, tx *sql.Tx, version int) error {
	// PRAGMA does not take bind parameters
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, version))
	return err
}

// Migrator runs the migrations a database has not seen yet
type Migrator struct {
	db         *sql.DB
	versioner  Versioner
	migrations []Migration
	logger     *zap.Logger
}

// NewMigrator checks that migrations are numbered 1..n in order
func NewMigrator(db *sql.DB, versioner Versioner, logger *zap.Logger, migrations ...Migration) (*Migrator, error) {
	for i, m := range migrations {
		if m.Version != i+1 {
			return nil, fmt.Errorf("migration %q has version %d, want %d", m.Description, m.Version, i+1)
		}
		if m.Up == nil {
			return nil, fmt.Errorf("migration %d has no Up", m.Version)
		}
	}
	return &Migrator{db: db, versioner: versioner, migrations: migrations, logger: logger}, nil
}

// Latest returns the version the migrations lead to
func (m *Migrator) Latest() int { return len(m.migrations) }

// Current returns the version applied to the database
func (m *Migrator) Current(ctx context.Context) (int, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	return m.versioner.Version(ctx, tx)
}

// Migrate applies each pending migration in its own transaction and
// returns how many ran. A database newer than the binary is refused.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	current, err := m.Current(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if current > m.Latest() {
		return 0, fmt.Errorf("schema version %d is newer than supported version %d", current, m.Latest())
	}

	applied := 0
	for _, mig := range m.migrations[current:] {
		if err := m.apply(ctx, mig); err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Description, err)
		}
		m.logger.Info("Applied schema migration",
			zap.Int("version", mig.Version),
			zap.String("description", mig.Description),
		)
		applied++
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := mig.Up(ctx, tx); err != nil {
		return err
	}
	if err := m.versioner.SetVersion(ctx, tx, mig.Version); err != nil {
		return err
	}
	return tx.Commit()
}

// Exec returns an Up that runs a fixed script
func Exec(script string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, script)
		return err
	}
}
