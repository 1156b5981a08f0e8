package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/withaibuild/site/pkg/logger"
)

// SchemaFS holds the submission table migrations.
//
//go:embed migrations/*.sql
var SchemaFS embed.FS

// SchemaDir is the directory of SchemaFS holding the migrations.
const SchemaDir = "migrations"

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord represents a migration record in the database.
type MigrationRecord struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

// MigrationStatus pairs a known migration with its applied time, if any.
type MigrationStatus struct {
	Migration
	AppliedAt *time.Time
}

// Migrator applies migrations and tracks them in schema_migrations.
type Migrator struct {
	pool       *Pool
	migrations []Migration
	log        *logger.Logger
}

// NewMigrator loads migrations from dir in fsys.
func NewMigrator(pool *Pool, fsys fs.FS, dir string, log *logger.Logger) (*Migrator, error) {
	migrations, err := LoadMigrations(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return NewMigratorWithMigrations(pool, migrations, log), nil
}

// NewSchemaMigrator creates a Migrator for the embedded submission schema.
func NewSchemaMigrator(pool *Pool, log *logger.Logger) (*Migrator, error) {
	return NewMigrator(pool, SchemaFS, SchemaDir, log)
}

// NewMigratorWithMigrations creates a Migrator with provided migrations.
func NewMigratorWithMigrations(pool *Pool, migrations []Migration, log *logger.Logger) *Migrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Migrator{
		pool:       pool,
		migrations: migrations,
		log:        log,
	}
}

// Migrations returns the known migrations in version order.
func (m *Migrator) Migrations() []Migration {
	return m.migrations
}

// LoadMigrations reads NNN_name.up.sql / NNN_name.down.sql pairs from dir.
// Files that do not follow the pattern are ignored. A version without an
// up script is an error.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*Migration)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		version, name, direction, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		mig, exists := byVersion[version]
		if !exists {
			mig = &Migration{Version: version, Name: name}
			byVersion[version] = mig
		} else if mig.Name != name {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, mig.Name, name)
		}

		switch direction {
		case "up":
			mig.UpSQL = string(content)
		case "down":
			mig.DownSQL = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if strings.TrimSpace(mig.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d (%s) has no up script", mig.Version, mig.Name)
		}
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseMigrationFilename splits 001_create_table.up.sql into its parts.
func parseMigrationFilename(filename string) (version int, name, direction string, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return 0, "", "", false
	}

	dot := strings.LastIndex(base, ".")
	if dot < 0 {
		return 0, "", "", false
	}
	direction = base[dot+1:]
	if direction != "up" && direction != "down" {
		return 0, "", "", false
	}

	parts := strings.SplitN(base[:dot], "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", "", false
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil || version <= 0 {
		return 0, "", "", false
	}

	return version, parts[1], direction, true
}

// EnsureMigrationsTable creates the migrations tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	_, err := m.pool.Exec(ctx, query)
	return err
}

// AppliedMigrations returns the list of applied migrations.
func (m *Migrator) AppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	if err := m.EnsureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	rows, err := m.pool.Query(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		if err := rows.Scan(&r.Version, &r.Name, &r.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// Status lists every known migration with its applied time.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	appliedAt := make(map[int]time.Time, len(applied))
	for _, r := range applied {
		appliedAt[r.Version] = r.AppliedAt
	}

	out := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		st := MigrationStatus{Migration: mig}
		if at, ok := appliedAt[mig.Version]; ok {
			at := at
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

// pending returns migrations not in applied, in version order.
func pending(all []Migration, applied []MigrationRecord) []Migration {
	appliedSet := make(map[int]bool, len(applied))
	for _, r := range applied {
		appliedSet[r.Version] = true
	}

	var out []Migration
	for _, mig := range all {
		if !appliedSet[mig.Version] {
			out = append(out, mig)
		}
	}
	return out
}

// PendingMigrations returns migrations that haven't been applied yet.
func (m *Migrator) PendingMigrations(ctx context.Context) ([]Migration, error) {
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	return pending(m.migrations, applied), nil
}

// Up applies all pending migrations, each in its own transaction, and
// returns how many were applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	todo, err := m.PendingMigrations(ctx)
	if err != nil {
		return 0, err
	}

	for i, mig := range todo {
		start := time.Now()
		if err := m.applyMigration(ctx, mig); err != nil {
			return i, fmt.Errorf("failed to apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		m.log.Info("migration applied",
			"version", mig.Version,
			"name", mig.Name,
			"duration", time.Since(start),
		)
	}

	return len(todo), nil
}

// Down rolls back the last applied migration. It reports false when there
// was nothing to roll back.
func (m *Migrator) Down(ctx context.Context) (bool, error) {
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return false, err
	}
	if len(applied) == 0 {
		return false, nil
	}

	last := applied[len(applied)-1]

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last.Version {
			mig = &m.migrations[i]
			break
		}
	}
	if mig == nil {
		return false, fmt.Errorf("migration %d not found", last.Version)
	}

	if err := m.rollbackMigration(ctx, *mig); err != nil {
		return false, fmt.Errorf("failed to roll back migration %d (%s): %w", mig.Version, mig.Name, err)
	}
	m.log.Info("migration rolled back", "version", mig.Version, "name", mig.Name)
	return true, nil
}

func (m *Migrator) applyMigration(ctx context.Context, mig Migration) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
		return fmt.Errorf("failed to execute up SQL: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
		mig.Version, mig.Name)
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit(ctx)
}

func (m *Migrator) rollbackMigration(ctx context.Context, mig Migration) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if mig.DownSQL != "" {
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("failed to execute down SQL: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version)
	if err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	return tx.Commit(ctx)
}

// CurrentVersion returns the current migration version, 0 when none.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	applied, err := m.AppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}
	if len(applied) == 0 {
		return 0, nil
	}
	return applied[len(applied)-1].Version, nil
}
