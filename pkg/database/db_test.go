package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_FileCreatesDirAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.db")
	db, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM kv_store`).Scan(&n))
	assert.Zero(t, n)

	// migrating twice is harmless
	assert.NoError(t, Migrate(db))
}

func TestDefaultConfig_Env(t *testing.T) {
	t.Setenv("CARDHUB_DB_PATH", "/tmp/x.db")
	assert.Equal(t, "/tmp/x.db", DefaultConfig().Path)

	t.Setenv("CARDHUB_DB_PATH", "")
	assert.Equal(t, "data.db", filepath.Base(DefaultConfig().Path))
}
