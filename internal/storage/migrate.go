package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

//go:embed migrations/*.sql
var schemaFiles embed.FS

const schemaTable = `CREATE TABLE IF NOT EXISTS schema_versions (
    version TEXT PRIMARY KEY
)`

// schemaStep is one numbered migration, e.g. "0001_init".
type schemaStep struct {
	version string
	up      string
	down    string
}

func loadSchemaSteps() ([]schemaStep, error) {
	names, err := fs.Glob(schemaFiles, "migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(names)
	steps := make([]schemaStep, 0, len(names))
	for _, name := range names {
		version := strings.TrimSuffix(path.Base(name), ".up.sql")
		up, err := schemaFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", version, err)
		}
		down, err := schemaFiles.ReadFile("migrations/" + version + ".down.sql")
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", version, err)
		}
		steps = append(steps, schemaStep{version: version, up: string(up), down: string(down)})
	}
	return steps, nil
}

// migrate applies each step not yet recorded in schema_versions, one
// transaction per step.
func migrate(ctx context.Context, db *sql.DB) error {
	steps, err := loadSchemaSteps()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, schemaTable); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if applied[step.version] {
			continue
		}
		err := inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, step.up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_versions (version) VALUES (?)`, step.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", step.version, err)
		}
	}
	return nil
}

// rollback reverts every applied step, newest first.
func rollback(ctx context.Context, db *sql.DB) error {
	steps, err := loadSchemaSteps()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, schemaTable); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	for _, step := range slices.Backward(steps) {
		if !applied[step.version] {
			continue
		}
		err := inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, step.down); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM schema_versions WHERE version = ?`, step.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("revert migration %s: %w", step.version, err)
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_versions`)
	if err != nil {
		return nil, fmt.Errorf("read schema_versions: %w", err)
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
