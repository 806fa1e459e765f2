package warehouse

import (
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
)

type Dialect string

const (
	DialectPostgres   Dialect = "postgres"
	DialectDuckDB     Dialect = "duckdb"
	DialectDatabricks Dialect = "databricks"
	DialectSnowflake  Dialect = "snowflake"
)

var SupportedDialects = []Dialect{DialectPostgres, DialectDuckDB, DialectDatabricks, DialectSnowflake}

func ParseDialect(name string) (Dialect, error) {
	for _, d := range SupportedDialects {
		if string(d) == name {
			return d, nil
		}
	}
	return "", fmt.Errorf("unsupported warehouse driver %q, expected one of %v", name, SupportedDialects)
}

// Placeholder returns the bind parameter style of the dialect.
func (d Dialect) Placeholder() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)

// ValidateTableName rejects anything but plain, optionally schema-qualified identifiers.
// Table names are configuration and cannot be bound as parameters.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}
