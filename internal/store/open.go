package store

import (
	"context"
	"fmt"

	"github.com/couchcryptid/clima-ingest-service/internal/config"
	"github.com/jonboulle/clockwork"
)

// SQLDialect maps a STORE_DRIVER value to its SQL dialect.
func SQLDialect(driver string) (Dialect, bool) {
	switch driver {
	case "sqlite":
		return DialectSQLite, true
	case "postgres":
		return DialectPostgres, true
	case "mysql":
		return DialectMySQL, true
	default:
		return "", false
	}
}

// Open builds the Store selected by STORE_DRIVER against the profile's table.
// SQL backends are migrated before use.
func Open(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (Store, error) {
	if dialect, ok := SQLDialect(cfg.StoreDriver); ok {
		return NewSQLStore(ctx, dialect, cfg.StoreDSN, cfg.StoreTable, clock)
	}
	switch cfg.StoreDriver {
	case "memory":
		return NewMemoryStore(cfg.StoreTable, clock), nil
	case "redis":
		return NewRedisStore(ctx, cfg.StoreDSN, cfg.StoreTable, clock)
	case "mongo":
		return NewMongoStore(ctx, cfg.StoreDSN, cfg.StoreTable, clock)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.StoreDriver)
	}
}
