package warehouse

import (
	"context"
	"testing"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("duckdb")
	require.NoError(t, err)
	assert.Equal(t, DialectDuckDB, d)

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestValidateTableName(t *testing.T) {
	assert.NoError(t, ValidateTableName("scorecard"))
	assert.NoError(t, ValidateTableName("vl_analytics.scorecard_vl02"))
	assert.NoError(t, ValidateTableName("main.vl_analytics.scorecard"))
	assert.Error(t, ValidateTableName("scorecard; DROP TABLE x"))
	assert.Error(t, ValidateTableName(""))
}

func TestDatabricksDSN(t *testing.T) {
	t.Run("from settings", func(t *testing.T) {
		dsn, err := DatabricksDSN(Settings{Databricks: DatabricksSettings{
			Host:     "example.cloud.databricks.com:443",
			Token:    "tok",
			HTTPPath: "/sql/1.0/warehouses/wh",
			Catalog:  "main",
		}})
		require.NoError(t, err)
		assert.Equal(t, "token:tok@example.cloud.databricks.com:443/sql/1.0/warehouses/wh?catalog=main", dsn)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := DatabricksDSN(Settings{Databricks: DatabricksSettings{Host: "h", HTTPPath: "/p"}})
		assert.ErrorIs(t, err, domain.ErrMissingCredentials)
	})
}

func TestSnowflakeDSN_MissingCredentials(t *testing.T) {
	_, err := SnowflakeDSN(Settings{Snowflake: SnowflakeSettings{Account: "acme"}})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestOpen(t *testing.T) {
	t.Run("postgres without dsn", func(t *testing.T) {
		_, err := Open(context.Background(), Settings{Driver: DialectPostgres}, "")
		assert.ErrorIs(t, err, domain.ErrMissingCredentials)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Open(context.Background(), Settings{Driver: "oracle"}, "")
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	})

	t.Run("duckdb in memory", func(t *testing.T) {
		db, err := Open(context.Background(), Settings{Driver: DialectDuckDB}, "scorecard")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM scorecard").Scan(&count))
		assert.Equal(t, 0, count)
	})
}
