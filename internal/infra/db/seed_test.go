package db_test

import (
	"context"
	"testing"

	"bookstore/internal/domain/model"
	"bookstore/internal/infra/db"
	"bookstore/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedCatalog_Idempotent(t *testing.T) {
	gdb := testutil.NewDB(t)
	books := db.SampleCatalog()

	n, err := db.SeedCatalog(context.Background(), gdb, books)
	require.NoError(t, err)
	assert.Equal(t, len(books), n)

	n, err = db.SeedCatalog(context.Background(), gdb, books)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var count int64
	require.NoError(t, gdb.Model(&model.Product{}).Count(&count).Error)
	assert.Equal(t, int64(len(books)), count)
}
