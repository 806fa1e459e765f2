package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/databricks/databricks-sql-go"
	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/store/duckdb"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	sf "github.com/snowflakedb/gosnowflake"
)

type Settings struct {
	Driver     Dialect            `mapstructure:"driver"`
	DSN        string             `mapstructure:"dsn"`
	DuckDB     DuckDBSettings     `mapstructure:"duckdb"`
	Databricks DatabricksSettings `mapstructure:"databricks"`
	Snowflake  SnowflakeSettings  `mapstructure:"snowflake"`
}

type DuckDBSettings struct {
	Path string `mapstructure:"path"`
}

type DatabricksSettings struct {
	Profile  string `mapstructure:"profile"`
	Host     string `mapstructure:"host"`
	Token    string `mapstructure:"token"`
	HTTPPath string `mapstructure:"http_path"`
	Catalog  string `mapstructure:"catalog"`
	Schema   string `mapstructure:"schema"`
}

type SnowflakeSettings struct {
	Account   string `mapstructure:"account"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Database  string `mapstructure:"database"`
	Schema    string `mapstructure:"schema"`
	Warehouse string `mapstructure:"warehouse"`
	Role      string `mapstructure:"role"`
}

// Open connects to the configured warehouse and verifies the connection.
// factTable, when set, is created on DuckDB connections.
func Open(ctx context.Context, settings Settings, factTable string) (*sql.DB, error) {
	logger := zerolog.Ctx(ctx)

	if factTable != "" {
		if err := ValidateTableName(factTable); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
		}
	}

	db, err := open(settings, factTable)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s warehouse: %w", settings.Driver, err)
	}

	logger.Debug().Str("driver", string(settings.Driver)).Msg("warehouse connection established")
	return db, nil
}

func open(settings Settings, factTable string) (*sql.DB, error) {
	switch settings.Driver {
	case DialectPostgres:
		if settings.DSN == "" {
			return nil, fmt.Errorf("%w: postgres warehouse requires a dsn", domain.ErrMissingCredentials)
		}
		db, err := sql.Open("pgx", settings.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres warehouse: %w", err)
		}
		return db, nil

	case DialectDuckDB:
		path := settings.DuckDB.Path
		if path == "" {
			path = settings.DSN
		}
		if path == "" {
			path = ":memory:"
		}
		db, err := duckdb.NewDB(duckdb.Settings{DbPath: path, FactTable: factTable})
		if err != nil {
			return nil, fmt.Errorf("failed to open duckdb warehouse: %w", err)
		}
		return db, nil

	case DialectDatabricks:
		dsn, err := DatabricksDSN(settings)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open("databricks", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open databricks warehouse: %w", err)
		}
		return db, nil

	case DialectSnowflake:
		dsn, err := SnowflakeDSN(settings)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open("snowflake", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open snowflake warehouse: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("%w: unsupported warehouse driver %q", domain.ErrInvalidConfig, settings.Driver)
	}
}

func DatabricksDSN(settings Settings) (string, error) {
	if settings.DSN != "" {
		return settings.DSN, nil
	}

	cfg := settings.Databricks
	if cfg.Token == "" {
		return "", fmt.Errorf("%w: databricks warehouse requires a token", domain.ErrMissingCredentials)
	}
	if cfg.Host == "" || cfg.HTTPPath == "" {
		return "", fmt.Errorf("%w: databricks warehouse requires host and http_path", domain.ErrInvalidConfig)
	}

	dsn := fmt.Sprintf("token:%s@%s%s", cfg.Token, cfg.Host, cfg.HTTPPath)

	params := url.Values{}
	if cfg.Catalog != "" {
		params.Set("catalog", cfg.Catalog)
	}
	if cfg.Schema != "" {
		params.Set("schema", cfg.Schema)
	}
	if qp := params.Encode(); qp != "" {
		dsn = dsn + "?" + qp
	}
	return dsn, nil
}

func SnowflakeDSN(settings Settings) (string, error) {
	if settings.DSN != "" {
		return settings.DSN, nil
	}

	cfg := settings.Snowflake
	if cfg.User == "" || cfg.Password == "" {
		return "", fmt.Errorf("%w: snowflake warehouse requires user and password", domain.ErrMissingCredentials)
	}
	if cfg.Account == "" {
		return "", fmt.Errorf("%w: snowflake warehouse requires an account", domain.ErrInvalidConfig)
	}

	dsn, err := sf.DSN(&sf.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create snowflake DSN: %w", err)
	}
	return dsn, nil
}
