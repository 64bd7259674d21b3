package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migration is one numbered schema step. Version is the up file's name, which is what
// schema_migrations records.
type Migration struct {
	Version  string
	UpPath   string
	DownPath string
}

// LoadMigrations lists the *.up.sql files of dir in order, each paired with its
// *.down.sql file when one exists.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	downs := map[string]string{}
	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			migrations = append(migrations, Migration{Version: name, UpPath: filepath.Join(dir, name)})
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = filepath.Join(dir, name)
		}
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	for i := range migrations {
		migrations[i].DownPath = downs[strings.TrimSuffix(migrations[i].Version, ".up.sql")]
	}
	return migrations, nil
}

func ApplyMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	_, err := MigrateUp(ctx, db, migrationsDir)
	return err
}

// MigrateUp applies every pending migration, each in its own transaction, and returns
// the versions it applied.
func MigrateUp(ctx context.Context, db *sql.DB, migrationsDir string) ([]string, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}
	migrations, err := LoadMigrations(migrationsDir)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range migrations {
		if migrated, err := isMigrated(ctx, db, m.Version); err != nil {
			return applied, err
		} else if migrated {
			continue
		}
		if err := runMigrationFile(ctx, db, m.UpPath, `INSERT INTO schema_migrations(version) VALUES($1)`, m.Version); err != nil {
			return applied, err
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// MigrateDown reverts the last steps applied migrations, newest first; steps <= 0
// reverts all of them.
func MigrateDown(ctx context.Context, db *sql.DB, migrationsDir string, steps int) ([]string, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}
	migrations, err := LoadMigrations(migrationsDir)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string]Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}
	versions, err := AppliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	var reverted []string
	for i := len(versions) - 1; i >= 0; i-- {
		if steps > 0 && len(reverted) == steps {
			break
		}
		m, ok := byVersion[versions[i]]
		if !ok || m.DownPath == "" {
			return reverted, fmt.Errorf("no down migration for %s", versions[i])
		}
		if err := runMigrationFile(ctx, db, m.DownPath, `DELETE FROM schema_migrations WHERE version=$1`, m.Version); err != nil {
			return reverted, err
		}
		reverted = append(reverted, m.Version)
	}
	return reverted, nil
}

// AppliedMigrations returns the recorded versions in order.
func AppliedMigrations(ctx context.Context, db *sql.DB) ([]string, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()
	var versions []string
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

func runMigrationFile(ctx context.Context, db *sql.DB, path, record, version string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute migration %s: %w", filepath.Base(path), err)
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func isMigrated(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return exists, nil
}
