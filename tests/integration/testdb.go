// Package integration runs the shopkit backend against a real PostgreSQL
// started with testcontainers. The tests skip under -short.
package integration

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopkit/backend/internal/infrastructure/config"
	"github.com/shopkit/backend/internal/infrastructure/migration"
	"github.com/shopkit/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "postgres"
	pgPassword = "shopkit123"
)

// sharedPG is the package-wide container behind NewSharedTestDB
var sharedPG struct {
	sync.Mutex
	container *tcpostgres.PostgresContainer
	cfg       config.DatabaseConfig
}

// TestDB is a connection to a migrated schema
type TestDB struct {
	DB *gorm.DB

	t         *testing.T
	dsn       string
	pool      *sql.DB
	container *tcpostgres.PostgresContainer // nil for the shared container
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker; skipped with -short")
	}
}

// NewTestDB starts a container of its own, so schema-level tests can step
// migrations freely. It is terminated when t ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	container, cfg := runPostgres(t, "shopkit_test")
	tdb := connect(t, cfg)
	tdb.container = container
	migrateUp(t, cfg.DSN())
	t.Cleanup(tdb.close)
	return tdb
}

// NewSharedTestDB connects to the package's shared container, starting and
// migrating it on first use. Rows left by earlier tests remain until
// CleanTables.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	sharedPG.Lock()
	if sharedPG.container == nil {
		container, cfg := runPostgres(t, "shopkit_shared_test")
		migrateUp(t, cfg.DSN())
		sharedPG.container, sharedPG.cfg = container, cfg
	}
	cfg := sharedPG.cfg
	sharedPG.Unlock()

	tdb := connect(t, cfg)
	t.Cleanup(tdb.close)
	return tdb
}

// CleanupSharedContainer is called from TestMain once the tests are done
func CleanupSharedContainer() {
	sharedPG.Lock()
	defer sharedPG.Unlock()
	if sharedPG.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = sharedPG.container.Terminate(ctx)
	sharedPG.container = nil
}

func (tdb *TestDB) close() {
	_ = tdb.pool.Close()
	if tdb.container == nil {
		return
	}
	if err := tdb.container.Terminate(context.Background()); err != nil {
		tdb.t.Logf("terminate postgres container: %v", err)
	}
}

// CleanTables empties every table except schema_migrations in one
// statement.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()
	var tables []string
	require.NoError(tdb.t, tdb.DB.Raw(
		`SELECT quote_ident(tablename) FROM pg_tables WHERE schemaname = 'public' AND tablename <> 'schema_migrations'`,
	).Scan(&tables).Error)
	if len(tables) == 0 {
		return
	}
	require.NoError(tdb.t, tdb.DB.Exec("TRUNCATE "+strings.Join(tables, ", ")+" CASCADE").Error)
}

// Migrator opens a migrator on a connection of its own; closing the
// migrator closes that connection, not DB. The caller closes it.
func (tdb *TestDB) Migrator() *migration.Migrator {
	tdb.t.Helper()
	return newMigrator(tdb.t, tdb.dsn)
}

func runPostgres(t *testing.T, dbName string) (*tcpostgres.PostgresContainer, config.DatabaseConfig) {
	t.Helper()
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, pgImage,
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername(pgUser),
		tcpostgres.WithPassword(pgPassword),
		testcontainers.WithWaitStrategy(
			// postgres logs readiness once for the init run and once for real
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "start postgres container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return container, config.DatabaseConfig{
		Driver:          config.DriverPostgres,
		Host:            host,
		Port:            port.Int(),
		User:            pgUser,
		Password:        pgPassword,
		DBName:          dbName,
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5,
		ConnMaxIdleTime: 1,
	}
}

// connect opens cfg through persistence like the server does. Set
// SHOPKIT_TEST_SQL=1 to see the statements.
func connect(t *testing.T, cfg config.DatabaseConfig) *TestDB {
	t.Helper()
	level := gormlogger.Silent
	if os.Getenv("SHOPKIT_TEST_SQL") != "" {
		level = gormlogger.Info
	}
	db, err := persistence.NewDatabaseWithLogger(&cfg, gormlogger.Default.LogMode(level))
	require.NoError(t, err, "connect to postgres")
	pool, err := db.DB.DB()
	require.NoError(t, err)
	return &TestDB{DB: db.DB, t: t, dsn: cfg.DSN(), pool: pool}
}

func newMigrator(t *testing.T, dsn string) *migration.Migrator {
	t.Helper()
	pool, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	m, err := migration.New(pool, "", zap.NewNop())
	require.NoError(t, err)
	return m
}

func migrateUp(t *testing.T, dsn string) {
	t.Helper()
	m := newMigrator(t, dsn)
	defer m.Close()
	require.NoError(t, m.Up(), "apply embedded migrations")
}
