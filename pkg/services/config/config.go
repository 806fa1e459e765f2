package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/services/sheet"
	"github.com/de-tools/scorecard/pkg/sheet/gsheets"
	"github.com/de-tools/scorecard/pkg/store/duckdb"
	"github.com/de-tools/scorecard/pkg/store/warehouse"
	"github.com/spf13/viper"
)

const EnvPrefix = "SCORECARD"

type SheetBackend string

const (
	SheetBackendGoogle SheetBackend = "gsheets"
	SheetBackendXLSX   SheetBackend = "xlsx"
)

type KpiKind string

const (
	KpiKindQuery   KpiKind = "query"
	KpiKindAverage KpiKind = "average"
	KpiKindRatio   KpiKind = "ratio"
)

type Config struct {
	Scorecard            ScorecardSettings             `mapstructure:"scorecard"`
	Warehouse            warehouse.Settings            `mapstructure:"warehouse"`
	Sources              map[string]warehouse.Settings `mapstructure:"sources"`
	Sheet                SheetSettings                 `mapstructure:"sheet"`
	KPIs                 []KpiConfig                   `mapstructure:"kpis"`
	Archive              ArchiveSettings               `mapstructure:"archive"`
	DatabricksConfigFile string                        `mapstructure:"databricks_config_file"`
}

type ScorecardSettings struct {
	Name     string `mapstructure:"name"`
	Table    string `mapstructure:"table"`
	IDColumn string `mapstructure:"id_column"`
}

type SheetSettings struct {
	Backend         SheetBackend `mapstructure:"backend"`
	SpreadsheetID   string       `mapstructure:"spreadsheet_id"`
	Worksheet       string       `mapstructure:"worksheet"`
	Path            string       `mapstructure:"path"`
	CredentialsFile string       `mapstructure:"credentials_file"`
	sheet.Settings  `mapstructure:",squash"`
}

func (s SheetSettings) Google() gsheets.Settings {
	return gsheets.Settings{
		SpreadsheetID:   s.SpreadsheetID,
		Worksheet:       s.Worksheet,
		CredentialsFile: s.CredentialsFile,
	}
}

type ArchiveSettings struct {
	S3 S3Settings `mapstructure:"s3"`
}

type S3Settings struct {
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

func (s S3Settings) Enabled() bool {
	return s.Bucket != ""
}

type KpiRef struct {
	Scorecard string `mapstructure:"scorecard"`
	Number    string `mapstructure:"number"`
}

// KpiConfig declares one KPI. Query KPIs read from Source (the fact
// warehouse when empty); average and ratio KPIs read stored observations.
type KpiConfig struct {
	Scorecard   string           `mapstructure:"scorecard"`
	Number      string           `mapstructure:"number"`
	Name        string           `mapstructure:"name"`
	Details     string           `mapstructure:"details"`
	RangeType   domain.RangeType `mapstructure:"range_type"`
	Kind        KpiKind          `mapstructure:"kind"`
	Source      string           `mapstructure:"source"`
	Query       string           `mapstructure:"query"`
	Params      []string         `mapstructure:"params"`
	Base        KpiRef           `mapstructure:"base"`
	Window      int              `mapstructure:"window"`
	Numerator   KpiRef           `mapstructure:"numerator"`
	Denominator KpiRef           `mapstructure:"denominator"`
}

func setDefaults(v *viper.Viper) {
	defaults := sheet.DefaultSettings()

	v.SetDefault("scorecard.name", "")
	v.SetDefault("scorecard.table", duckdb.DefaultFactTable)
	v.SetDefault("scorecard.id_column", "")
	v.SetDefault("warehouse.driver", string(warehouse.DialectDuckDB))
	v.SetDefault("warehouse.dsn", "")
	v.SetDefault("warehouse.duckdb.path", "")
	v.SetDefault("warehouse.databricks.profile", "")
	v.SetDefault("warehouse.databricks.host", "")
	v.SetDefault("warehouse.databricks.token", "")
	v.SetDefault("warehouse.databricks.http_path", "")
	v.SetDefault("warehouse.snowflake.account", "")
	v.SetDefault("warehouse.snowflake.user", "")
	v.SetDefault("warehouse.snowflake.password", "")
	v.SetDefault("sheet.backend", string(SheetBackendXLSX))
	v.SetDefault("sheet.spreadsheet_id", "")
	v.SetDefault("sheet.worksheet", "")
	v.SetDefault("sheet.path", "scorecard.xlsx")
	v.SetDefault("sheet.credentials_file", "")
	v.SetDefault("sheet.header_row", defaults.HeaderRow)
	v.SetDefault("sheet.base_week_column", defaults.BaseWeekColumn)
	v.SetDefault("sheet.kpi_row_start", defaults.KpiRowStart)
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.prefix", "")
	v.SetDefault("archive.s3.region", "")
	v.SetDefault("archive.s3.profile", "")
	v.SetDefault("databricks_config_file", "")
}

// LoadConfig reads the config file at path, applies SCORECARD_* environment
// overrides and validates the result.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scorecard config: %w", err)
	}

	if cfg.Sheet.CredentialsFile == "" {
		cfg.Sheet.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if cfg.Sheet.Worksheet == "" {
		cfg.Sheet.Worksheet = cfg.Scorecard.Name
	}
	for i := range cfg.KPIs {
		if cfg.KPIs[i].Scorecard == "" {
			cfg.KPIs[i].Scorecard = cfg.Scorecard.Name
		}
	}

	if err := cfg.resolveProfiles(ctx); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveProfiles fills Databricks connection details from .databrickscfg
// for every warehouse that names a profile.
func (c *Config) resolveProfiles(ctx context.Context) error {
	needs := c.Warehouse.Databricks.Profile != ""
	for _, s := range c.Sources {
		needs = needs || s.Databricks.Profile != ""
	}
	if !needs {
		return nil
	}

	path := c.DatabricksConfigFile
	if path == "" {
		path = DefaultDatabricksConfigPath()
	}
	registry, err := NewRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load databricks profiles from %s: %w", path, domain.ErrMissingCredentials)
	}

	if err := ApplyProfile(ctx, registry, &c.Warehouse.Databricks); err != nil {
		return err
	}
	for name, s := range c.Sources {
		if err := ApplyProfile(ctx, registry, &s.Databricks); err != nil {
			return fmt.Errorf("source %s: %w", name, err)
		}
		c.Sources[name] = s
	}
	return nil
}

// ApplyProfile copies host, token and http_path from the named profile into
// settings, keeping values that are already set.
func ApplyProfile(ctx context.Context, registry Registry, settings *warehouse.DatabricksSettings) error {
	if settings.Profile == "" {
		return nil
	}
	profile, err := registry.GetConfig(ctx, settings.Profile)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMissingCredentials, err)
	}
	httpPath, err := registry.GetHTTPPath(ctx, settings.Profile)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMissingCredentials, err)
	}

	if settings.Host == "" {
		settings.Host = profile.Host
	}
	if settings.Token == "" {
		settings.Token = profile.Token
	}
	if settings.HTTPPath == "" {
		settings.HTTPPath = httpPath
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Scorecard.Name) == "" {
		return fmt.Errorf("scorecard.name is required: %w", domain.ErrInvalidConfig)
	}
	if err := warehouse.ValidateTableName(c.Scorecard.Table); err != nil {
		return fmt.Errorf("scorecard.table: %w: %v", domain.ErrInvalidConfig, err)
	}
	if _, err := warehouse.ParseDialect(string(c.Warehouse.Driver)); err != nil {
		return fmt.Errorf("warehouse.driver: %w: %v", domain.ErrInvalidConfig, err)
	}

	switch c.Sheet.Backend {
	case SheetBackendGoogle, SheetBackendXLSX:
	default:
		return fmt.Errorf("sheet.backend %q is not supported: %w", c.Sheet.Backend, domain.ErrInvalidConfig)
	}
	return nil
}

// ValidatePublish checks what a publish needs before anything runs.
func (c *Config) ValidatePublish() error {
	switch c.Sheet.Backend {
	case SheetBackendGoogle:
		if c.Sheet.SpreadsheetID == "" {
			return fmt.Errorf("sheet.spreadsheet_id is required: %w", domain.ErrInvalidConfig)
		}
		if c.Sheet.CredentialsFile == "" {
			return fmt.Errorf("sheet.credentials_file or GOOGLE_APPLICATION_CREDENTIALS is required: %w", domain.ErrMissingCredentials)
		}
	case SheetBackendXLSX:
		if c.Sheet.Path == "" {
			return fmt.Errorf("sheet.path is required: %w", domain.ErrInvalidConfig)
		}
	}
	if c.Sheet.Worksheet == "" {
		return fmt.Errorf("sheet.worksheet is required: %w", domain.ErrInvalidConfig)
	}
	return nil
}

// Validate checks one KPI declaration. A failure only disables that KPI.
func (k KpiConfig) Validate(sources map[string]warehouse.Settings) error {
	if domain.NormalizeKpiNumber(k.Number) == "" {
		return fmt.Errorf("number is required: %w", domain.ErrInvalidConfig)
	}
	switch k.Kind {
	case KpiKindQuery, "":
		if strings.TrimSpace(k.Query) == "" {
			return fmt.Errorf("kpi %s: query is required: %w", k.Number, domain.ErrInvalidConfig)
		}
		if k.Source != "" {
			if _, ok := sources[k.Source]; !ok {
				return fmt.Errorf("kpi %s: unknown source %q: %w", k.Number, k.Source, domain.ErrInvalidConfig)
			}
		}
	case KpiKindAverage:
		if domain.NormalizeKpiNumber(k.Base.Number) == "" {
			return fmt.Errorf("kpi %s: base.number is required: %w", k.Number, domain.ErrInvalidConfig)
		}
		if k.Window < 0 {
			return fmt.Errorf("kpi %s: window must be positive: %w", k.Number, domain.ErrInvalidConfig)
		}
	case KpiKindRatio:
		if domain.NormalizeKpiNumber(k.Numerator.Number) == "" || domain.NormalizeKpiNumber(k.Denominator.Number) == "" {
			return fmt.Errorf("kpi %s: numerator and denominator are required: %w", k.Number, domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("kpi %s: unknown kind %q: %w", k.Number, k.Kind, domain.ErrInvalidConfig)
	}
	return nil
}
