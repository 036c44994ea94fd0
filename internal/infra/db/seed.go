package db

import (
	"context"
	"fmt"

	"bookstore/internal/domain/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 開発用の初期カタログ
func SampleCatalog() []model.Product {
	return []model.Product{
		{Title: "The Go Programming Language", Author: "Alan Donovan", Price: decimal.RequireFromString("39.99"), Stock: 20, IsActive: true},
		{Title: "Concurrency in Go", Author: "Katherine Cox-Buday", Price: decimal.RequireFromString("34.50"), Stock: 15, IsActive: true},
		{Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", Price: decimal.RequireFromString("45.00"), Stock: 10, IsActive: true},
		{Title: "Database Internals", Author: "Alex Petrov", Price: decimal.RequireFromString("42.25"), Stock: 8, IsActive: true},
		{Title: "Site Reliability Engineering", Author: "Betsy Beyer", Price: decimal.RequireFromString("29.90"), Stock: 5, IsActive: true},
	}
}

// タイトルが無いものだけ作る。作った件数を返す
func SeedCatalog(ctx context.Context, gdb *gorm.DB, books []model.Product) (int, error) {
	created := 0
	for _, b := range books {
		book := b
		res := gdb.WithContext(ctx).Where("title = ?", book.Title).FirstOrCreate(&book)
		if res.Error != nil {
			return created, fmt.Errorf("seed %q: %w", book.Title, res.Error)
		}
		created += int(res.RowsAffected)
	}
	return created, nil
}
