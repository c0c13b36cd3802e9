package database

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"gorm.io/gorm"

	"github.com/tbourn/go-backend-kit/internal/apperr"
	"github.com/tbourn/go-backend-kit/internal/env"
)

// newTestPool builds a pool on a fresh sqlite file under t.TempDir.
func newTestPool(t *testing.T, min, max int) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kit.db")
	e := env.FromMap(map[string]string{EnvDatabaseURL: "sqlite://" + path})
	db, err := BuildPool(e, min, max)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func requireDatabaseErr(t *testing.T, err error) *apperr.Error {
	t.Helper()
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T: %v", err, err)
	}
	if ae.Kind() != apperr.KindDatabase {
		t.Fatalf("expected Database kind, got %v", ae.Kind())
	}
	return ae
}

func TestBuildPool_SQLiteBoundsAndPragmas(t *testing.T) {
	db := newTestPool(t, 2, 7)

	sqlDB, _ := db.DB()
	if got := sqlDB.Stats().MaxOpenConnections; got != 7 {
		t.Fatalf("MaxOpenConnections = %d; want 7", got)
	}

	var fkOn, busyMS int
	var journal string
	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil || fkOn != 1 {
		t.Fatalf("foreign_keys = %d err=%v", fkOn, err)
	}
	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil || busyMS != 5000 {
		t.Fatalf("busy_timeout = %d err=%v", busyMS, err)
	}
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journal); err != nil || strings.ToLower(journal) != "wal" {
		t.Fatalf("journal_mode = %q err=%v", journal, err)
	}
}

func TestBuildDefaultPool_UsesDefaultBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.db")
	db, err := BuildDefaultPool(env.FromMap(map[string]string{EnvDatabaseURL: "sqlite://" + path}))
	if err != nil {
		t.Fatalf("BuildDefaultPool: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()
	if got := sqlDB.Stats().MaxOpenConnections; got != DefaultPoolMax {
		t.Fatalf("MaxOpenConnections = %d; want %d", got, DefaultPoolMax)
	}
}

func TestBuildPool_Failures(t *testing.T) {
	missingDir := filepath.Join(t.TempDir(), "does-not-exist", "app.db")

	cases := []struct {
		name     string
		url      string
		min, max int
		contains string
	}{
		{"empty url", "", 1, 20, "empty"},
		{"unsupported scheme", "redis://localhost:6379/0", 1, 20, "unsupported database scheme"},
		{"no scheme", "localhost/app", 1, 20, "no scheme"},
		{"bad url", "mysql://[::1", 1, 20, "missing ']'"},
		{"missing sqlite dir", "sqlite://" + missingDir, 1, 20, "no such file"},
		{"empty sqlite path", "sqlite://", 1, 20, "no path"},
		{"min above max", "sqlite://x.db", 5, 2, "invalid pool bounds"},
		{"zero max", "sqlite://x.db", 0, 0, "invalid pool bounds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, err := BuildPool(env.FromMap(map[string]string{EnvDatabaseURL: tc.url}), tc.min, tc.max)
			if err == nil || db != nil {
				t.Fatalf("expected failure, got db=%v err=%v", db, err)
			}
			ae := requireDatabaseErr(t, err)
			if !strings.Contains(strings.ToLower(ae.Message()), strings.ToLower(tc.contains)) {
				t.Fatalf("message %q does not contain %q", ae.Message(), tc.contains)
			}
			if got := ae.UserErrors()["database"][0]; got != apperr.MsgServerError {
				t.Fatalf("user view should be redacted, got %q", got)
			}
		})
	}
}

func TestBuildPool_ProcessEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proc.db")
	t.Setenv(EnvDatabaseURL, "sqlite://"+path)

	db, err := BuildPool(env.FromMap(map[string]string{EnvDatabaseURL: "redis://nope"}), 1, 2)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected sqlite file at process URL: %v", err)
	}
}

func TestDialectorFor_PicksDriver(t *testing.T) {
	cases := map[string]string{
		"mysql://root:pw@db:3306/app":                 "mysql",
		"MYSQL://root@db/app":                         "mysql",
		"postgres://u:p@localhost:5432/app":           "postgres",
		"postgresql://u:p@localhost/app":              "postgres",
		"sqlite://file:mem1?mode=memory&cache=shared": "sqlite",
	}
	for raw, want := range cases {
		d, err := dialectorFor(raw)
		if err != nil {
			t.Fatalf("dialectorFor(%q): %v", raw, err)
		}
		if d.Name() != want {
			t.Fatalf("dialectorFor(%q) = %s; want %s", raw, d.Name(), want)
		}
	}
}

func TestMySQLDSN(t *testing.T) {
	u, _ := url.Parse("mysql://root:s3cr%40t@db/app?charset=utf8mb4")
	dsn, err := mysqlDSN(u)
	if err != nil {
		t.Fatalf("mysqlDSN: %v", err)
	}
	for _, part := range []string{"root:s3cr@t@tcp(db:3306)/app", "charset=utf8mb4", "parseTime=true"} {
		if !strings.Contains(dsn, part) {
			t.Fatalf("dsn %q missing %q", dsn, part)
		}
	}

	u, _ = url.Parse("mysql://db:3307/app?parseTime=false")
	dsn, err = mysqlDSN(u)
	if err != nil {
		t.Fatalf("mysqlDSN: %v", err)
	}
	if strings.Contains(dsn, "parseTime=true") || !strings.Contains(dsn, "tcp(db:3307)/app") {
		t.Fatalf("explicit parseTime must be kept, dsn=%q", dsn)
	}
}

func TestSQLiteDSN_KeepsCustomPragmas(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "a.db") + "?_pragma=foreign_keys(0)"
	got, err := sqliteDSN(custom)
	if err != nil || got != custom {
		t.Fatalf("sqliteDSN(custom) = %q, %v", got, err)
	}

	got, err = sqliteDSN(":memory:")
	if err != nil {
		t.Fatalf("sqliteDSN(:memory:): %v", err)
	}
	if strings.Contains(got, "journal_mode") || !strings.Contains(got, "_pragma=") {
		t.Fatalf("memory DSN should carry pragmas without WAL, got %q", got)
	}
}

func TestBuildPool_WithTracingAndOptions(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	path := filepath.Join(t.TempDir(), "traced.db")
	e := env.FromMap(map[string]string{EnvDatabaseURL: "sqlite://" + path})
	db, err := BuildPool(e, 1, 3,
		WithTracing("kit"),
		WithConnMaxLifetime(0),
		WithConnMaxIdleTime(0),
		WithSlowThreshold(0),
	)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if _, err := Mutate(context.Background(), db, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("traced statement failed: %v", err)
	}

	ended := rec.Ended()
	if len(ended) == 0 {
		t.Fatalf("expected a span for the traced statement")
	}
	var namespace string
	for _, span := range ended {
		for _, kv := range span.Attributes() {
			if kv.Key == semconv.DBNamespaceKey {
				namespace = kv.Value.AsString()
			}
		}
	}
	if namespace != "kit" {
		t.Fatalf("db.namespace = %q; want %q", namespace, "kit")
	}
}

func TestRegisterPoolStats_Idempotent(t *testing.T) {
	db := newTestPool(t, 1, 2)
	reg := prometheus.NewRegistry()
	if err := RegisterPoolStats(reg, db, "primary"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := RegisterPoolStats(reg, db, "primary"); err != nil {
		t.Fatalf("second register should be tolerated: %v", err)
	}
	mfs, err := reg.Gather()
	if err != nil || len(mfs) == 0 {
		t.Fatalf("expected gathered pool metrics, got %d err=%v", len(mfs), err)
	}
}

func TestBuildPool_ErrorUnwrapsToDriver(t *testing.T) {
	_, err := BuildPool(env.FromMap(map[string]string{EnvDatabaseURL: ""}), 1, 1)
	if !errors.Is(err, errEmptyURL) {
		t.Fatalf("expected errEmptyURL cause, got %v", err)
	}
}
