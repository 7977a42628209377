// Package migrations embeds the SQL schema so the API binary and the test
// harness apply the same files.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var files embed.FS

// Names returns the embedded migration file names in apply order.
func Names() ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("migrations: read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// All concatenates every migration in order.
func All() (string, error) {
	names, err := Names()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("migrations: read %s: %w", name, err)
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// lockKey serialises concurrent Apply calls from several processes.
const lockKey = 720_145_001

// Apply executes every migration against the pool while holding a session
// advisory lock. Statements are idempotent so re-running on an existing
// schema is safe.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := Names()
	if err != nil {
		return err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("migrations: acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockKey); err != nil {
		return fmt.Errorf("migrations: lock: %w", err)
	}
	defer conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockKey)

	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", name, err)
		}
		if _, err := conn.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("migrations: apply %s: %w", name, err)
		}
	}
	return nil
}
