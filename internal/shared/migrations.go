package shared

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var schemaFiles embed.FS

// schemaStep is one numbered schema script, named like 0002_missing_tracks.sql.
type schemaStep struct {
	version int
	name    string
	script  string
}

func loadSchemaSteps(fsys fs.FS) ([]schemaStep, error) {
	names, err := fs.Glob(fsys, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list schema scripts: %w", err)
	}

	steps := make([]schemaStep, 0, len(names))
	for _, name := range names {
		base := path.Base(name)
		prefix, _, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("schema script %s has no version prefix", base)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("schema script %s has an invalid version", base)
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema script %s: %w", base, err)
		}
		steps = append(steps, schemaStep{version: version, name: base, script: string(content)})
	}

	slices.SortFunc(steps, func(a, b schemaStep) int { return a.version - b.version })
	for i := range steps {
		if steps[i].version != i+1 {
			return nil, fmt.Errorf("schema script %s is out of sequence, expected version %d", steps[i].name, i+1)
		}
	}
	return steps, nil
}

// SchemaVersion reports the schema version recorded in the database header.
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// RunMigrations brings the history schema up to date.
//
// The applied version lives in SQLite's user_version header, and each step commits together with its version bump.
func RunMigrations(db *sql.DB) error {
	return migrate(db, schemaFiles)
}

func migrate(db *sql.DB, fsys fs.FS) error {
	steps, err := loadSchemaSteps(fsys)
	if err != nil {
		return err
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current > len(steps) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", current, len(steps))
	}

	for _, step := range steps[current:] {
		if err := applySchemaStep(db, step); err != nil {
			return fmt.Errorf("failed to apply %s: %w", step.name, err)
		}
	}
	return nil
}

func applySchemaStep(db *sql.DB, step schemaStep) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(step.script); err != nil {
		return err
	}
	// PRAGMA does not accept bound parameters
	if _, err := tx.Exec("PRAGMA user_version = " + strconv.Itoa(step.version)); err != nil {
		return err
	}
	return tx.Commit()
}
