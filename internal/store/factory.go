package store

import (
	"context"
	"fmt"
	"strings"
)

// Options selects and configures a backend.
type Options struct {
	// Backend is "sqlite" or "postgres".
	Backend     string
	SQLitePath  string
	SQLite      SQLiteOptions
	PostgresDSN string
}

// Open returns the configured backend. The choice is made once per process.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "sqlite":
		return OpenSQLite(opts.SQLitePath, opts.SQLite)
	case "postgres":
		return OpenPostgres(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
