// Package sqlite implements the registry provider on a single SQLite
// database file - packages, tags and state blobs stored as BLOBs.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
	"github.com/formlio/forml/internal/project"
	"github.com/formlio/forml/internal/registry/sqlite/migrations"
)

// Ensure Registry implements the interface.
var _ driven.Registry = (*Registry)(nil)

// Registry is a SQLite backed registry.
type Registry struct {
	db   *sql.DB
	path string
}

// New creates (and if necessary migrates) a SQLite registry at the
// given database path.
func New(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}

	// WAL mode for concurrent train/list access.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening registry database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	r := &Registry{db: db, path: path}
	if err := r.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return r, nil
}

// Shutdown closes the database connection.
func (r *Registry) Shutdown() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Registry) Path() string {
	return r.path
}

func (r *Registry) migrate(fsys embed.FS) error {
	if _, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := r.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := r.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Projects lists distinct project keys.
func (r *Registry) Projects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT project FROM lineages ORDER BY project")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		p, err := domain.ParseProject(raw)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Lineages lists lineage versions of a project ordered by version key.
func (r *Registry) Lineages(ctx context.Context, p domain.Project) ([]domain.Version, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT version FROM lineages WHERE project = ?", p.String())
	if err != nil {
		return nil, fmt.Errorf("listing lineages: %w", err)
	}
	defer rows.Close()

	var versions []domain.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning lineage: %w", err)
		}
		version, err := domain.ParseVersion(raw)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Compare(versions[j]) < 0 })
	return versions, nil
}

// Generations lists committed generation ordinals of a lineage.
func (r *Registry) Generations(ctx context.Context, p domain.Project, l domain.Version) ([]domain.Generation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT ordinal FROM generations WHERE project = ? AND version = ? ORDER BY ordinal",
		p.String(), l.String())
	if err != nil {
		return nil, fmt.Errorf("listing generations: %w", err)
	}
	defer rows.Close()

	var generations []domain.Generation
	for rows.Next() {
		var ordinal int
		if err := rows.Scan(&ordinal); err != nil {
			return nil, fmt.Errorf("scanning generation: %w", err)
		}
		generations = append(generations, domain.Generation(ordinal))
	}
	return generations, rows.Err()
}

// Push stores the package bytes under its manifest coordinates.
func (r *Registry) Push(ctx context.Context, pkg domain.Package) error {
	info, err := os.Stat(pkg.Path)
	if err != nil {
		return fmt.Errorf("reading package: %w", err)
	}
	path := pkg.Path
	if info.IsDir() {
		// Directory packages are archived before storage.
		staging := filepath.Join(os.TempDir(), fmt.Sprintf("forml-%s.%s", pkg.Manifest, domain.PackageFormat))
		archived, err := project.Create(pkg.Path, pkg.Manifest, staging)
		if err != nil {
			return err
		}
		defer os.Remove(archived.Path)
		path = archived.Path
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading package: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO lineages (project, version, package) VALUES (?, ?, ?)",
		pkg.Manifest.Name.String(), pkg.Manifest.Version.String(), raw)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%w: lineage %s", domain.ErrAlreadyExists, pkg.Manifest)
		}
		return fmt.Errorf("storing package: %w", err)
	}
	return nil
}

// Pull materializes the stored package into a temp file.
func (r *Registry) Pull(ctx context.Context, p domain.Project, l domain.Version) (domain.Package, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT package FROM lineages WHERE project = ? AND version = ?",
		p.String(), l.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Package{}, fmt.Errorf("%w: lineage %s/%s", domain.ErrNotFound, p, l)
	}
	if err != nil {
		return domain.Package{}, fmt.Errorf("fetching package: %w", err)
	}
	path := filepath.Join(os.TempDir(), fmt.Sprintf("forml-%s-%s.%s", p, l, domain.PackageFormat))
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return domain.Package{}, fmt.Errorf("materializing package: %w", err)
	}
	return project.Open(path)
}

// Write stages a state blob (NULL ordinal).
func (r *Registry) Write(ctx context.Context, p domain.Project, l domain.Version, sid string, state []byte) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO states (project, version, ordinal, sid, payload) VALUES (?, ?, NULL, ?, ?)",
		p.String(), l.String(), sid, state)
	if err != nil {
		return fmt.Errorf("staging state: %w", err)
	}
	return nil
}

// Read fetches a committed state blob.
func (r *Registry) Read(ctx context.Context, p domain.Project, l domain.Version, g domain.Generation, sid string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT payload FROM states WHERE project = ? AND version = ? AND ordinal = ? AND sid = ?",
		p.String(), l.String(), int(g), sid).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: state %s", domain.ErrNotFound, sid)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching state: %w", err)
	}
	return payload, nil
}

// Open fetches a committed generation tag.
func (r *Registry) Open(ctx context.Context, p domain.Project, l domain.Version, g domain.Generation) (domain.Tag, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT tag FROM generations WHERE project = ? AND version = ? AND ordinal = ?",
		p.String(), l.String(), int(g)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tag{}, fmt.Errorf("%w: generation %s/%s/%s", domain.ErrNotFound, p, l, g)
	}
	if err != nil {
		return domain.Tag{}, fmt.Errorf("fetching tag: %w", err)
	}
	return domain.ParseTag(raw)
}

// Close commits a generation: staged states adopt the ordinal and the
// tag is persisted, all in one transaction.
func (r *Registry) Close(ctx context.Context, p domain.Project, l domain.Version, g domain.Generation, tag domain.Tag) error {
	raw, err := tag.Bytes()
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting commit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var committed int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM generations WHERE project = ? AND version = ? AND ordinal = ?",
		p.String(), l.String(), int(g)).Scan(&committed); err != nil {
		return fmt.Errorf("checking generation: %w", err)
	}
	if committed > 0 {
		return fmt.Errorf("%w: generation %s/%s/%s", domain.ErrAlreadyExists, p, l, g)
	}

	for _, sid := range tag.States {
		result, err := tx.ExecContext(ctx,
			"UPDATE states SET ordinal = ? WHERE project = ? AND version = ? AND sid = ? AND ordinal IS NULL",
			int(g), p.String(), l.String(), sid)
		if err != nil {
			return fmt.Errorf("promoting state %s: %w", sid, err)
		}
		promoted, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("promoting state %s: %w", sid, err)
		}
		if promoted == 0 {
			return fmt.Errorf("%w: %s", domain.ErrStateNotStaged, sid)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO generations (project, version, ordinal, tag) VALUES (?, ?, ?, ?)",
		p.String(), l.String(), int(g), raw); err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%w: generation %s/%s/%s", domain.ErrAlreadyExists, p, l, g)
		}
		return fmt.Errorf("storing tag: %w", err)
	}
	return tx.Commit()
}

// isConstraint reports whether the error is a uniqueness violation.
func isConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint")
}
