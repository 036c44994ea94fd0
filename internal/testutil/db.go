// Package testutil はテスト用のDBを用意する。
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"bookstore/internal/domain/model"
	"bookstore/internal/infra/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// テストごとに別のインメモリDB。接続は1本なのでTxは直列になる
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", seq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// 公開中の商品を1件作る
func SeedProduct(t *testing.T, gdb *gorm.DB, title string, price string, stock int64) model.Product {
	t.Helper()

	p := model.Product{
		Title:    title,
		Author:   "author of " + title,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, gdb.Create(&p).Error)
	return p
}

func SeedUser(t *testing.T, gdb *gorm.DB, email string) model.User {
	t.Helper()

	u := model.User{Email: email, PasswordHash: "x", Role: model.RoleUser, IsActive: true}
	require.NoError(t, gdb.Create(&u).Error)
	return u
}

// 現在の在庫
func Stock(t *testing.T, gdb *gorm.DB, productID int64) int64 {
	t.Helper()

	var p model.Product
	require.NoError(t, gdb.Unscoped().First(&p, productID).Error)
	return p.Stock
}

// 全カートで予約中の数（エントリ数）
func Reserved(t *testing.T, gdb *gorm.DB, productID int64) int64 {
	t.Helper()

	var n int64
	require.NoError(t, gdb.Model(&model.CartItemEntry{}).Where("product_id = ?", productID).Count(&n).Error)
	return n
}
