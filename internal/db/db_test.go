package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenForTestingAppliesMigrations(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	for _, table := range []string{"products", "activity"} {
		var name string
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err)
		assert.Equal(t, table, name)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	first, err := Open(path)
	require.NoError(t, err)
	_, err = first.Exec(`INSERT INTO products (product_id, sku_alias, created_at, updated_at)
		VALUES ('p1', 'H-1', datetime('now'), datetime('now'))`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, second.Close()) })

	var count int
	require.NoError(t, second.QueryRow("SELECT COUNT(*) FROM products").Scan(&count))
	assert.Equal(t, 1, count)
}
