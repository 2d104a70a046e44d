package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	provisioning "github.com/goliatone/go-provisioning"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultLabel = "go-provisioning"
	migrationDir = "data/sql/migrations"
)

// dialectDirs lists where each dialect's migrations live relative to the
// migration root. Postgres files sit at the root.
var dialectDirs = []struct {
	dialect string
	dir     string
}{
	{DialectPostgres, "."},
	{DialectSQLite, "sqlite"},
}

// DialectForDriver maps a database/sql driver name onto a migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch normalize(driver) {
	case "postgres", "pgx", "pg":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: no dialect for driver %q", driver)
	}
}

// Source is one dialect's migration set.
type Source struct {
	Dialect string
	Dir     string
	FS      fs.FS
}

type Registration struct {
	Label    string
	Dialects []string
	Sources  []Source
}

// RegisterFunc hands a dialect's migrations to the persistence layer,
// typically persistence.Client.RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, dialect string, label string, fsys fs.FS) error

type Option func(*Registration)

func WithLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.Label = label
		}
	}
}

// WithDialects restricts registration to the named dialects.
func WithDialects(dialects ...string) Option {
	return func(r *Registration) {
		if picked := unique(dialects); len(picked) > 0 {
			r.Dialects = picked
		}
	}
}

// WithSources replaces the embedded migration sets.
func WithSources(sources ...Source) Option {
	return func(r *Registration) {
		var picked []Source
		for _, src := range sources {
			if src.FS == nil || normalize(src.Dialect) == "" {
				continue
			}
			src.Dialect = normalize(src.Dialect)
			picked = append(picked, src)
		}
		if len(picked) > 0 {
			r.Sources = picked
		}
	}
}

// Sources resolves the per-dialect migration sets from root, defaulting to
// the embedded schema. Every set must carry at least one up migration.
func Sources(root ...fs.FS) ([]Source, error) {
	fsys := provisioning.GetCoreMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		fsys = root[0]
	}

	base, baseDir, err := locateRoot(fsys)
	if err != nil {
		return nil, err
	}

	out := make([]Source, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		sub, dir := base, baseDir
		if entry.dir != "." {
			if sub, err = fs.Sub(base, entry.dir); err != nil {
				return nil, fmt.Errorf("migrations: %s directory: %w", entry.dialect, err)
			}
			dir = path.Join(baseDir, entry.dir)
		}
		ups, err := fs.Glob(sub, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: scan %s: %w", dir, err)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: no %s up migrations under %q", entry.dialect, dir)
		}
		out = append(out, Source{Dialect: entry.dialect, Dir: dir, FS: sub})
	}
	return out, nil
}

// Register passes each selected dialect's migrations to fn. Postgres and
// SQLite are selected unless WithDialects narrows them.
func Register(ctx context.Context, fn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		Label:    DefaultLabel,
		Dialects: []string{DialectPostgres, DialectSQLite},
	}
	if fn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	sources, err := Sources()
	if err != nil {
		return reg, err
	}
	reg.Sources = sources

	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	for _, src := range reg.Sources {
		if !slices.Contains(reg.Dialects, src.Dialect) {
			continue
		}
		if err := fn(ctx, src.Dialect, reg.Label, src.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s from %s: %w", src.Dialect, src.Dir, err)
		}
	}
	return reg, nil
}

// locateRoot accepts either the module root (holding data/sql/migrations) or
// a directory that already contains the .sql files.
func locateRoot(fsys fs.FS) (fs.FS, string, error) {
	if _, err := fs.Stat(fsys, migrationDir); err == nil {
		sub, err := fs.Sub(fsys, migrationDir)
		if err != nil {
			return nil, "", fmt.Errorf("migrations: %w", err)
		}
		return sub, migrationDir, nil
	}
	if matches, _ := fs.Glob(fsys, "*.sql"); len(matches) > 0 {
		return fsys, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", migrationDir)
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func unique(values []string) []string {
	var out []string
	for _, value := range values {
		value = normalize(value)
		if value == "" || slices.Contains(out, value) {
			continue
		}
		out = append(out, value)
	}
	return out
}
