package db

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(Options{})
	if err == nil {
		t.Fatalf("expected error when no path supplied")
	}
}

func TestOpenAppliesPragmasWithDefaultTimeout(t *testing.T) {
	t.Parallel()

	database := openTestDatabase(t, Options{Path: filepath.Join(t.TempDir(), "pages.db")})

	var foreignKeys int
	if err := database.Raw("PRAGMA foreign_keys;").Scan(&foreignKeys).Error; err != nil {
		t.Fatalf("querying foreign_keys pragma failed: %v", err)
	}
	if foreignKeys != 1 {
		t.Fatalf("expected foreign keys pragma to be enabled, got %d", foreignKeys)
	}

	var journalMode string
	if err := database.Raw("PRAGMA journal_mode;").Scan(&journalMode).Error; err != nil {
		t.Fatalf("querying journal_mode pragma failed: %v", err)
	}
	if !strings.EqualFold(strings.TrimSpace(journalMode), "wal") {
		t.Fatalf("expected journal mode WAL, got %q", journalMode)
	}

	var busyTimeout int
	if err := database.Raw("PRAGMA busy_timeout;").Scan(&busyTimeout).Error; err != nil {
		t.Fatalf("querying busy_timeout pragma failed: %v", err)
	}

	expected := int(defaultBusyTimeout / time.Millisecond)
	if busyTimeout != expected {
		t.Fatalf("expected busy timeout %d, got %d", expected, busyTimeout)
	}
}

func TestOpenHonoursConnectionLimitsWithLogrusLogger(t *testing.T) {
	t.Parallel()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	opts := Options{
		Path:         filepath.Join(t.TempDir(), "pages_custom.db"),
		Logger:       logger,
		BusyTimeout:  1500 * time.Millisecond,
		MaxOpenConns: 7,
	}
	database := openTestDatabase(t, opts)

	var busyTimeout int
	if err := database.Raw("PRAGMA busy_timeout;").Scan(&busyTimeout).Error; err != nil {
		t.Fatalf("querying busy_timeout pragma failed: %v", err)
	}
	if busyTimeout != 1500 {
		t.Fatalf("expected busy timeout 1500, got %d", busyTimeout)
	}

	sqlDB, err := SQLDB(database)
	if err != nil {
		t.Fatalf("SQLDB returned error: %v", err)
	}
	if stats := sqlDB.Stats(); stats.MaxOpenConnections != opts.MaxOpenConns {
		t.Fatalf("expected MaxOpenConns %d, got %d", opts.MaxOpenConns, stats.MaxOpenConnections)
	}
}

func TestPingReportsHealthyAndClosedDatabase(t *testing.T) {
	t.Parallel()

	database, err := Open(Options{Path: filepath.Join(t.TempDir(), "ping.db")})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	if err := Ping(context.Background(), database); err != nil {
		t.Fatalf("expected ping to succeed, got %v", err)
	}

	if err := Close(database); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if err := Ping(context.Background(), database); err == nil {
		t.Fatalf("expected ping to fail after close")
	}
}

func TestSQLDBWithNilDatabase(t *testing.T) {
	t.Parallel()

	if _, err := SQLDB(nil); err == nil {
		t.Fatalf("expected error when database is nil")
	}
}

func openTestDatabase(t *testing.T, opts Options) *gorm.DB {
	t.Helper()

	database, err := Open(opts)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := Close(database); closeErr != nil {
			t.Errorf("closing database failed: %v", closeErr)
		}
	})

	return database
}
