// Package integration exercises the compiled SQL against live database
// containers. Containers are shared across the whole run and torn down
// in TestMain; sqlite runs in-process and needs none of this.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mariadb"
	"github.com/testcontainers/testcontainers-go/modules/mssql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	sharedPg      *PostgresContainer
	sharedMariaDB *MariaDBContainer
	sharedMSSQL   *MSSQLContainer

	pgOnce      sync.Once
	mariadbOnce sync.Once
	mssqlOnce   sync.Once

	pgErr      error
	mariadbErr error
	mssqlErr   error

	cleanupMu sync.Mutex
	cleanups  []func(context.Context)
)

// registerCleanup queues teardown work for TestMain. Cleanups run in
// reverse order, so connections registered after their container close
// first.
func registerCleanup(fn func(context.Context)) {
	cleanupMu.Lock()
	cleanups = append(cleanups, fn)
	cleanupMu.Unlock()
}

// TestMain tears down whatever the run started. Short mode is checked
// per test because flag.Parse has not run yet here.
func TestMain(m *testing.M) {
	code := m.Run()

	ctx := context.Background()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i](ctx)
	}
	os.Exit(code)
}

// waitForPing blocks until the database answers a ping, retrying once
// per second. Containers report ready before their server accepts
// connections on some hosts.
func waitForPing(db *sql.DB, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		time.Sleep(time.Second)
	}
	return err
}

// getPostgresContainer starts the shared PostgreSQL container on first
// use. A startup failure fails every test that asks for it.
func getPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	pgOnce.Do(func() {
		ctx := context.Background()

		container, err := postgres.Run(ctx,
			"docker.io/postgres:16-alpine",
			postgres.WithDatabase("vecql_test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		if err != nil {
			pgErr = fmt.Errorf("start postgres: %w", err)
			return
		}
		registerCleanup(func(ctx context.Context) { _ = container.Terminate(ctx) })

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			pgErr = fmt.Errorf("postgres connection string: %w", err)
			return
		}

		conn, err := pgx.Connect(ctx, connStr)
		if err != nil {
			pgErr = fmt.Errorf("connect to postgres: %w", err)
			return
		}
		registerCleanup(func(ctx context.Context) { _ = conn.Close(ctx) })

		sharedPg = &PostgresContainer{container: container, conn: conn}
	})

	if pgErr != nil {
		t.Fatalf("Failed to provision postgres: %v", pgErr)
	}
	return sharedPg
}

// getMariaDBContainer starts the shared MariaDB container on first use.
func getMariaDBContainer(t *testing.T) *MariaDBContainer {
	t.Helper()

	mariadbOnce.Do(func() {
		ctx := context.Background()

		container, err := mariadb.Run(ctx,
			"docker.io/mariadb:11",
			mariadb.WithDatabase("vecql_test"),
			mariadb.WithUsername("test"),
			mariadb.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("mariadbd: ready for connections").
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			mariadbErr = fmt.Errorf("start mariadb: %w", err)
			return
		}
		registerCleanup(func(ctx context.Context) { _ = container.Terminate(ctx) })

		connStr, err := container.ConnectionString(ctx)
		if err != nil {
			mariadbErr = fmt.Errorf("mariadb connection string: %w", err)
			return
		}

		db, err := sql.Open("mysql", connStr)
		if err != nil {
			mariadbErr = fmt.Errorf("open mariadb: %w", err)
			return
		}
		registerCleanup(func(context.Context) { _ = db.Close() })

		if err := waitForPing(db, 30); err != nil {
			mariadbErr = fmt.Errorf("ping mariadb: %w", err)
			return
		}

		sharedMariaDB = &MariaDBContainer{container: container, db: db}
	})

	if mariadbErr != nil {
		t.Fatalf("Failed to provision mariadb: %v", mariadbErr)
	}
	return sharedMariaDB
}

// getMSSQLContainer starts the shared SQL Server container on first use.
func getMSSQLContainer(t *testing.T) *MSSQLContainer {
	t.Helper()

	mssqlOnce.Do(func() {
		ctx := context.Background()

		container, err := mssql.Run(ctx,
			"mcr.microsoft.com/mssql/server:2022-latest",
			mssql.WithAcceptEULA(),
			mssql.WithPassword("Test@12345"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("SQL Server is now ready for client connections").
					WithStartupTimeout(120*time.Second),
			),
		)
		if err != nil {
			mssqlErr = fmt.Errorf("start mssql: %w", err)
			return
		}
		registerCleanup(func(ctx context.Context) { _ = container.Terminate(ctx) })

		connStr, err := container.ConnectionString(ctx)
		if err != nil {
			mssqlErr = fmt.Errorf("mssql connection string: %w", err)
			return
		}

		db, err := sql.Open("sqlserver", connStr)
		if err != nil {
			mssqlErr = fmt.Errorf("open mssql: %w", err)
			return
		}
		registerCleanup(func(context.Context) { _ = db.Close() })

		if err := waitForPing(db, 60); err != nil {
			mssqlErr = fmt.Errorf("ping mssql: %w", err)
			return
		}

		sharedMSSQL = &MSSQLContainer{container: container, db: db}
	})

	if mssqlErr != nil {
		t.Fatalf("Failed to provision mssql: %v", mssqlErr)
	}
	return sharedMSSQL
}
