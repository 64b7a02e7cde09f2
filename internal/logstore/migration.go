package logstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/newhook/cilog/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one numbered schema change, read from "NNN_name.sql". The
// file holds an "-- +up" section and optionally a "-- +down" section.
type Migration struct {
	Version string
	Name    string
	Up      []string
	Down    []string
}

// Migrate applies the pending migrations embedded in the binary.
func Migrate(ctx context.Context, db *sql.DB) error {
	return MigrateFS(ctx, db, migrationsFS)
}

// MigrateFS applies the pending migrations found in fsys, each in its own
// transaction.
func MigrateFS(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return err
	}
	migrations, err := readMigrations(fsys)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if slices.Contains(applied, m.Version) {
			continue
		}
		logging.Info("applying migration", "version", m.Version, "name", m.Name)
		err := inTx(ctx, db, func(tx *sql.Tx) error {
			if err := execAll(ctx, tx, m.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration in fsys.
func Rollback(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return fmt.Errorf("no migrations to roll back")
	}
	version := applied[len(applied)-1]

	migrations, err := readMigrations(fsys)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == version })
	if i < 0 {
		return fmt.Errorf("migration %s not found", version)
	}
	m := migrations[i]
	if len(m.Down) == 0 {
		return fmt.Errorf("migration %s has no down section", version)
	}

	logging.Info("rolling back migration", "version", m.Version, "name", m.Name)
	return inTx(ctx, db, func(tx *sql.Tx) error {
		if err := execAll(ctx, tx, m.Down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", version)
		return err
	})
}

// AppliedVersions lists applied migration versions in ascending order.
func AppliedVersions(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func readMigrations(fsys fs.FS) ([]Migration, error) {
	var out []Migration
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return err
		}
		version, name, ok := strings.Cut(strings.TrimSuffix(path.Base(p), ".sql"), "_")
		if !ok {
			return fmt.Errorf("invalid migration filename: %s", p)
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		up, down := sections(string(content))
		out = append(out, Migration{Version: version, Name: name, Up: statements(up), Down: statements(down)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

// sections splits a migration file at its "-- +up" and "-- +down" markers.
func sections(content string) (up, down string) {
	var cur *strings.Builder
	var u, d strings.Builder
	for _, line := range strings.Split(content, "\n") {
		switch strings.TrimSpace(line) {
		case "-- +up":
			cur = &u
			continue
		case "-- +down":
			cur = &d
			continue
		}
		if cur != nil {
			cur.WriteString(line)
			cur.WriteByte('\n')
		}
	}
	return u.String(), d.String()
}

// statements splits a section into statements at semicolons that end a
// line. Comment-only lines are dropped.
func statements(section string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSuffix(strings.TrimSpace(cur.String()), ";"))
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func execAll(ctx context.Context, tx *sql.Tx, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
