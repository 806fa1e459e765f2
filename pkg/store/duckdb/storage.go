package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/marcboeker/go-duckdb/v2"
)

const DefaultFactTable = "scorecard"

const observationSequence = `CREATE SEQUENCE IF NOT EXISTS scorecard_observation_seq;`

// The fact table mirrors the warehouse schema; id records insertion order.
const factTableSchema = `
	CREATE TABLE IF NOT EXISTS %s (
		id BIGINT NOT NULL DEFAULT nextval('scorecard_observation_seq'),
		year INTEGER,
		print_date VARCHAR,
		sc_name VARCHAR NOT NULL,
		last_sunday VARCHAR NOT NULL,
		kpi_number VARCHAR NOT NULL,
		range_type VARCHAR,
		week_month VARCHAR,
		field_name VARCHAR,
		field_details VARCHAR,
		field_value DOUBLE
	);
`

type Settings struct {
	DbPath string
	// FactTable is created on every new connection. It must be a plain,
	// optionally schema-qualified identifier. Empty skips the bootstrap.
	FactTable string
}

func bootQueries(factTable string) []string {
	if factTable == "" {
		return nil
	}

	var queries []string
	if idx := strings.LastIndex(factTable, "."); idx > 0 {
		queries = append(queries, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", factTable[:idx]))
	}
	return append(queries, observationSequence, fmt.Sprintf(factTableSchema, factTable))
}

func NewDB(settings Settings) (*sql.DB, error) {
	queries := bootQueries(settings.FactTable)

	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), func(exec driver.ExecerContext) error {
		for _, query := range queries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}
