package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jonboulle/clockwork"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// dialectInfo holds the per-dialect driver name and statements. Table names
// are sanitized identifiers, so they are formatted in rather than quoted.
type dialectInfo struct {
	driver      string
	goose       database.Dialect
	createTable string
	upsert      string
	get         string
	del         string
}

var dialects = map[Dialect]dialectInfo{
	DialectSQLite: {
		driver: "sqlite",
		goose:  database.DialectSQLite3,
		createTable: `CREATE TABLE IF NOT EXISTS %s (
			city        TEXT PRIMARY KEY,
			temperature REAL NOT NULL,
			observed_at TIMESTAMP NOT NULL
		)`,
		upsert: `INSERT INTO %s (city, temperature, observed_at) VALUES (?, ?, ?)
			ON CONFLICT(city) DO UPDATE SET
				temperature=excluded.temperature, observed_at=excluded.observed_at`,
		get: `SELECT city, temperature, observed_at FROM %s WHERE city = ?`,
		del: `DELETE FROM %s WHERE city = ?`,
	},
	DialectPostgres: {
		driver: "pgx",
		goose:  database.DialectPostgres,
		createTable: `CREATE TABLE IF NOT EXISTS %s (
			city        TEXT PRIMARY KEY,
			temperature DOUBLE PRECISION NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL
		)`,
		upsert: `INSERT INTO %s (city, temperature, observed_at) VALUES ($1, $2, $3)
			ON CONFLICT (city) DO UPDATE SET
				temperature = EXCLUDED.temperature, observed_at = EXCLUDED.observed_at`,
		get: `SELECT city, temperature, observed_at FROM %s WHERE city = $1`,
		del: `DELETE FROM %s WHERE city = $1`,
	},
	DialectMySQL: {
		driver: "mysql",
		goose:  database.DialectMySQL,
		createTable: `CREATE TABLE IF NOT EXISTS %s (
			city        VARCHAR(255) NOT NULL PRIMARY KEY,
			temperature DOUBLE NOT NULL,
			observed_at DATETIME(6) NOT NULL
		)`,
		upsert: `INSERT INTO %s (city, temperature, observed_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE
				temperature = VALUES(temperature), observed_at = VALUES(observed_at)`,
		get: `SELECT city, temperature, observed_at FROM %s WHERE city = ?`,
		del: `DELETE FROM %s WHERE city = ?`,
	},
}

// SQLStore implements Store on a relational table keyed by city.
// Every read is served by the single primary, so Get is always strong.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	info    dialectInfo
	table   string
	clock   clockwork.Clock
}

// NewSQLStore opens the database and applies pending migrations for table.
func NewSQLStore(ctx context.Context, dialect Dialect, dsn, table string, clock clockwork.Clock) (*SQLStore, error) {
	s, err := OpenSQLStore(ctx, dialect, dsn, table, clock)
	if err != nil {
		return nil, err
	}
	if _, err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLStore opens the database without touching its schema.
func OpenSQLStore(ctx context.Context, dialect Dialect, dsn, table string, clock clockwork.Clock) (*SQLStore, error) {
	info, ok := dialects[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	dsn, err := prepareDSN(dialect, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(info.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s: %w", dialect, err)
	}

	return &SQLStore{
		db:      db,
		dialect: dialect,
		info:    info,
		table:   sanitizeIdent(table),
		clock:   clock,
	}, nil
}

// prepareDSN creates the SQLite directory and forces parseTime for MySQL so
// observed_at scans into time.Time.
func prepareDSN(dialect Dialect, dsn string) (string, error) {
	switch dialect {
	case DialectSQLite:
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return "", fmt.Errorf("creating db directory: %w", err)
			}
		}
		return dsn, nil
	case DialectMySQL:
		cfg, err := mysqldrv.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("parsing mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	default:
		return dsn, nil
	}
}

// provider builds a goose provider whose version table is scoped to the
// observation table, so dev/test/prod tables can share one database.
func (s *SQLStore) provider() (*goose.Provider, error) {
	versions, err := database.NewStore(s.info.goose, s.table+"_schema_version")
	if err != nil {
		return nil, fmt.Errorf("creating goose store: %w", err)
	}

	createTable := fmt.Sprintf(s.info.createTable, s.table)
	dropTable := "DROP TABLE IF EXISTS " + s.table
	up := &goose.GoFunc{RunDB: func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, createTable)
		return err
	}}
	down := &goose.GoFunc{RunDB: func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, dropTable)
		return err
	}}

	return goose.NewProvider("", s.db, nil,
		goose.WithStore(versions),
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(goose.NewGoMigration(1, up, down)),
	)
}

// Migrate applies pending migrations and returns the versions applied.
func (s *SQLStore) Migrate(ctx context.Context) ([]int64, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}

// PendingMigrations lists migration versions not yet applied.
func (s *SQLStore) PendingMigrations(ctx context.Context) ([]int64, error) {
	p, err := s.provider()
	if err != nil {
		return nil, err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading migration status: %w", err)
	}
	var pending []int64
	for _, st := range statuses {
		if st.State == goose.StatePending {
			pending = append(pending, st.Source.Version)
		}
	}
	return pending, nil
}

func (s *SQLStore) Upsert(ctx context.Context, city string, temperature float64) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(s.info.upsert, s.table), city, temperature, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving observation: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, city string, _ Consistency) (domain.Observation, error) {
	var obs domain.Observation
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(s.info.get, s.table), city).
		Scan(&obs.City, &obs.Temperature, &obs.ObservedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Observation{}, ErrNotFound
	}
	if err != nil {
		return domain.Observation{}, fmt.Errorf("reading observation: %w", err)
	}
	obs.ObservedAt = obs.ObservedAt.UTC()
	return obs, nil
}

func (s *SQLStore) Delete(ctx context.Context, city string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(s.info.del, s.table), city); err != nil {
		return fmt.Errorf("deleting observation: %w", err)
	}
	return nil
}

func (s *SQLStore) Describe(ctx context.Context) (TableInfo, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&count); err != nil {
		return TableInfo{}, fmt.Errorf("describing table: %w", err)
	}
	return TableInfo{
		Driver:    string(s.dialect),
		Table:     s.table,
		Status:    statusActive,
		KeySchema: keySchema,
		ItemCount: count,
	}, nil
}

// DB returns the underlying database connection.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
