package dbtest

import (
	"os"
	"strings"
	"testing"

	"officeshop/internal/infra/db"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TEST_DATABASE_DSN が無い、または繋がらなければスキップ。
// テストごとに専用スキーマを作り、終わったら消す。
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	admin, err := db.OpenPostgres(dsn, nil)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	adminSQL, err := admin.DB()
	if err != nil {
		t.Fatalf("postgres handle failed: %v", err)
	}

	schema := "officeshop_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := admin.Exec("CREATE SCHEMA " + schema).Error; err != nil {
		_ = adminSQL.Close()
		t.Fatalf("create schema failed: %v", err)
	}

	gdb, err := db.OpenPostgres(withSearchPath(dsn, schema), nil)
	if err != nil {
		_ = adminSQL.Close()
		t.Fatalf("open postgres failed: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		_ = adminSQL.Close()
	})

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return gdb
}

// URL形式とkey=value形式の両方に対応
func withSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}
