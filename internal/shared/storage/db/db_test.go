package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useMockDB routes openDB to a sqlmock database that expects pings.
func useMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	prev := openDB
	openDB = func(driverName, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driverName)
		return mockDB, nil
	}
	t.Cleanup(func() {
		openDB = prev
		_ = mockDB.Close()
	})
	return mock
}

func resetSingleton(t *testing.T) {
	t.Helper()
	singletonMu.Lock()
	singletonDB = nil
	singletonMu.Unlock()
	t.Cleanup(func() {
		singletonMu.Lock()
		singletonDB = nil
		singletonMu.Unlock()
	})
}

func TestConnectPingsAndAppliesPoolOptions(t *testing.T) {
	mock := useMockDB(t)
	mock.ExpectPing()

	conn, err := Connect(context.Background(), "postgres://ledger", DefaultLambdaOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, conn.Stats().MaxOpenConnections)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectFailsWhenPingFails(t *testing.T) {
	mock := useMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	_, err := Connect(context.Background(), "postgres://ledger", DefaultServerOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping database")
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "  ", DefaultServerOptions())
	assert.Error(t, err)
}

func TestGetSingletonReusesConnection(t *testing.T) {
	resetSingleton(t)
	mock := useMockDB(t)
	mock.ExpectPing()

	first, err := GetSingleton(context.Background(), "postgres://ledger", DefaultLambdaOptions())
	require.NoError(t, err)
	second, err := GetSingleton(context.Background(), "postgres://ledger", DefaultLambdaOptions())
	require.NoError(t, err)

	assert.Same(t, first, second)
	require.NoError(t, mock.ExpectationsWereMet(), "second call must not ping again")
}

func TestGetSingletonRetriesAfterFailure(t *testing.T) {
	resetSingleton(t)
	mock := useMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("cold start"))
	mock.ExpectClose()

	_, err := GetSingleton(context.Background(), "postgres://ledger", DefaultLambdaOptions())
	require.Error(t, err)

	mock = useMockDB(t)
	mock.ExpectPing()
	conn, err := GetSingleton(context.Background(), "postgres://ledger", DefaultLambdaOptions())
	require.NoError(t, err)
	assert.NotNil(t, conn)
}

func TestRunMigrationsNilDatabase(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil))
}

func TestLedgerMigrationDefinesEveryColumn(t *testing.T) {
	data, err := migrationFiles.ReadFile("migrations/00001_generations.sql")
	require.NoError(t, err)
	sqlText := string(data)

	assert.Contains(t, sqlText, "-- +goose Up")
	assert.Contains(t, sqlText, "-- +goose Down")
	for _, col := range []string{"id", "request_id", "doc_type", "mode", "format", "docx_name", "pdf_name",
		"pdf_pages", "size_bytes", "archive_key", "created_at", "deleted_at"} {
		assert.True(t, strings.Contains(sqlText, "\n    "+col+" "), "missing column %s", col)
	}
}
