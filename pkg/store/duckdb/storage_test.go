package duckdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_CreatesFactTable(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "duckdb-test-*")
	require.NoError(t, err)

	defer func() {
		err := os.RemoveAll(tmpDir)
		if err != nil {
			t.Errorf("failed to cleanup test directory: %v", err)
		}
	}()

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDB(Settings{
		DbPath:    dbPath,
		FactTable: "vl_analytics.scorecard_vl02",
	})
	require.NoError(t, err)
	require.NotNil(t, db)

	defer func() {
		err := db.Close()
		if err != nil {
			t.Errorf("failed to close database connection: %v", err)
		}
	}()

	for i := 0; i < 2; i++ {
		_, err = db.Exec(
			`INSERT INTO vl_analytics.scorecard_vl02 (sc_name, last_sunday, kpi_number, field_value) VALUES (?, ?, ?, ?)`,
			"Success", "2024-01-07", "16", 7.0,
		)
		require.NoError(t, err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM vl_analytics.scorecard_vl02 WHERE kpi_number = ?", "16").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "fact table is append-only, duplicate keys are kept")

	var maxID, minID int64
	err = db.QueryRow("SELECT MAX(id), MIN(id) FROM vl_analytics.scorecard_vl02").Scan(&maxID, &minID)
	require.NoError(t, err)
	assert.Greater(t, maxID, minID)
}

func TestBootQueries(t *testing.T) {
	assert.Empty(t, bootQueries(""))
	assert.Len(t, bootQueries(DefaultFactTable), 2)
	assert.Len(t, bootQueries("analytics.scorecard"), 3)
}
