// Package dbtest はテスト用のインメモリSQLiteを用意する。
package dbtest

import (
	"fmt"
	"testing"

	"officeshop/internal/infra/db"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// テストごとに別のインメモリDBを作り、マイグレーション済みで返す。
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.OpenSQLite(dsn, nil)
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}
