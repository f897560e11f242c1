// Package migrations embeds the SQL schema and applies it in file order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed *.sql
var files embed.FS

// Execer runs a statement. *sql.DB and *pgxpool.Pool adapters satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) error
}

// ExecFunc adapts a function to Execer.
type ExecFunc func(ctx context.Context, query string, args ...any) error

func (f ExecFunc) ExecContext(ctx context.Context, query string, args ...any) error {
	return f(ctx, query, args...)
}

// Apply runs every embedded migration. Statements are idempotent.
func Apply(ctx context.Context, db Execer) error {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// Names lists the embedded migration files in apply order.
func Names() []string {
	names, _ := fs.Glob(files, "*.sql")
	sort.Strings(names)
	return names
}
