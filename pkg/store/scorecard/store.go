package scorecard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/de-tools/scorecard/pkg/models/domain"
	"github.com/de-tools/scorecard/pkg/store/warehouse"
	"github.com/rs/zerolog"
)

// Store is the append-only fact table of KPI observations.
type Store interface {
	InsertObservation(ctx context.Context, observation domain.Observation) error
	FetchScalar(ctx context.Context, query string, args ...any) (float64, error)
	FetchObservationsInWindow(
		ctx context.Context,
		scorecard string,
		kpiNumber string,
		rangeType domain.RangeType,
		start time.Time,
		end time.Time,
	) ([]domain.Observation, error)
	FetchPeriodForWeekBucket(ctx context.Context, scorecard string, weekOfYear string) (*time.Time, error)
	FetchObservationsForPeriod(ctx context.Context, scorecard string, lastSunday time.Time) ([]domain.Observation, error)
}

type Settings struct {
	Table   string
	Dialect warehouse.Dialect
	// IDColumn is an optional insertion-order column used to break ties
	// between observations printed at the same time.
	IDColumn string
}

var factColumns = []string{
	"year",
	"print_date",
	"sc_name",
	"last_sunday",
	"kpi_number",
	"range_type",
	"week_month",
	"field_name",
	"field_details",
	"field_value",
}

type factStore struct {
	db       *sql.DB
	table    string
	idColumn string
	builder  sq.StatementBuilderType
}

func NewStore(db *sql.DB, settings Settings) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if err := warehouse.ValidateTableName(settings.Table); err != nil {
		return nil, err
	}
	if settings.IDColumn != "" {
		if err := warehouse.ValidateTableName(settings.IDColumn); err != nil {
			return nil, fmt.Errorf("invalid id column: %w", err)
		}
	}

	return &factStore{
		db:       db,
		table:    settings.Table,
		idColumn: settings.IDColumn,
		builder:  sq.StatementBuilder.PlaceholderFormat(settings.Dialect.Placeholder()),
	}, nil
}

func (s *factStore) InsertObservation(ctx context.Context, o domain.Observation) error {
	query, args, err := s.builder.
		Insert(s.table).
		Columns(factColumns...).
		Values(
			o.Year,
			o.PrintedAt.Format(domain.PrintDateLayout),
			o.Scorecard,
			o.LastSunday.Format(domain.DateLayout),
			domain.CanonicalKpiNumber(o.KpiNumber),
			string(o.RangeType),
			o.WeekOfYear,
			o.FieldName,
			nullableString(o.FieldDetails),
			nullableFloat(o.FieldValue),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := warehouse.Conn(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert observation %s/%s: %w", o.Scorecard, o.KpiNumber, err)
	}
	return nil
}

func (s *factStore) FetchScalar(ctx context.Context, query string, args ...any) (float64, error) {
	return warehouse.FetchScalar(ctx, warehouse.Conn(ctx, s.db), query, args...)
}

func (s *factStore) FetchObservationsInWindow(
	ctx context.Context,
	scorecard string,
	kpiNumber string,
	rangeType domain.RangeType,
	start time.Time,
	end time.Time,
) ([]domain.Observation, error) {
	q := s.selectObservations().
		Where(sq.Eq{"sc_name": scorecard}).
		Where(kpiNumberFilter(kpiNumber))
	if rangeType != "" {
		q = q.Where(sq.Eq{"range_type": string(rangeType)})
	}
	q = q.
		Where(sq.GtOrEq{"last_sunday": start.Format(domain.DateLayout)}).
		Where(sq.LtOrEq{"last_sunday": end.Format(domain.DateLayout)}).
		OrderBy(s.orderBy()...)

	return s.queryObservations(ctx, q)
}

func (s *factStore) FetchPeriodForWeekBucket(ctx context.Context, scorecard string, weekOfYear string) (*time.Time, error) {
	logger := zerolog.Ctx(ctx)

	query, args, err := s.builder.
		Select("last_sunday").
		Distinct().
		From(s.table).
		Where(sq.Eq{"week_month": weekOfYear}).
		Where(sq.Eq{"sc_name": scorecard}).
		OrderBy("last_sunday DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build period lookup: %w", err)
	}

	var raw sql.NullString
	err = warehouse.Conn(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		logger.Debug().Str("scorecard", scorecard).Str("week", weekOfYear).Msg("no persisted period for week bucket")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("period lookup failed: %w", err)
	}

	sunday, err := domain.ParseDate(raw.String)
	if err != nil {
		return nil, fmt.Errorf("period lookup: %w", err)
	}
	return &sunday, nil
}

func (s *factStore) FetchObservationsForPeriod(ctx context.Context, scorecard string, lastSunday time.Time) ([]domain.Observation, error) {
	q := s.selectObservations().
		Where(sq.Eq{"sc_name": scorecard}).
		Where(sq.Eq{"last_sunday": lastSunday.Format(domain.DateLayout)}).
		OrderBy(s.orderBy()...)

	observations, err := s.queryObservations(ctx, q)
	if err != nil {
		return nil, err
	}
	return domain.CurrentObservations(observations), nil
}

func (s *factStore) selectObservations() sq.SelectBuilder {
	columns := append([]string{}, factColumns...)
	if s.idColumn != "" {
		columns = append(columns, s.idColumn)
	}
	return s.builder.Select(columns...).From(s.table)
}

func (s *factStore) orderBy() []string {
	order := []string{"last_sunday", "print_date"}
	if s.idColumn != "" {
		order = append(order, s.idColumn)
	}
	return order
}

func (s *factStore) queryObservations(ctx context.Context, q sq.SelectBuilder) ([]domain.Observation, error) {
	logger := zerolog.Ctx(ctx)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build observation query: %w", err)
	}

	rows, err := warehouse.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("observation query failed: %w", err)
	}
	defer func(rows *sql.Rows) {
		err := rows.Close()
		if err != nil {
			logger.Warn().Err(err).Msg("failed to close observation query rows")
		}
	}(rows)

	observations := make([]domain.Observation, 0)
	for rows.Next() {
		o, err := s.scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("observation rows: %w", err)
	}
	return observations, nil
}

func (s *factStore) scanObservation(rows *sql.Rows) (domain.Observation, error) {
	var (
		year                                                sql.NullInt64
		printDate, scName, lastSunday, kpiNumber, rangeType sql.NullString
		weekMonth, fieldName, fieldDetails                  sql.NullString
		fieldValue                                          sql.NullFloat64
		id                                                  sql.NullInt64
	)

	dest := []any{
		&year, &printDate, &scName, &lastSunday, &kpiNumber,
		&rangeType, &weekMonth, &fieldName, &fieldDetails, &fieldValue,
	}
	if s.idColumn != "" {
		dest = append(dest, &id)
	}
	if err := rows.Scan(dest...); err != nil {
		return domain.Observation{}, fmt.Errorf("scan observation: %w", err)
	}

	sunday, err := domain.ParseDate(lastSunday.String)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("scan observation: %w", err)
	}

	o := domain.Observation{
		ID:         id.Int64,
		Year:       int(year.Int64),
		PrintedAt:  parsePrintDate(printDate.String),
		Scorecard:  scName.String,
		LastSunday: sunday,
		KpiNumber:  kpiNumber.String,
		RangeType:  domain.RangeType(rangeType.String),
		WeekOfYear: weekMonth.String,
		FieldName:  fieldName.String,
	}
	if fieldDetails.Valid {
		details := fieldDetails.String
		o.FieldDetails = &details
	}
	if fieldValue.Valid {
		value := fieldValue.Float64
		o.FieldValue = &value
	}
	return o, nil
}

var printDateLayouts = []string{
	domain.PrintDateLayout,
	"2006-01-02 15:04",
	time.RFC3339Nano,
	time.RFC3339,
	domain.DateLayout,
}

// parsePrintDate is lenient: print_date is informational and older rows were
// written with minute precision. Unparseable values sort first.
func parsePrintDate(value string) time.Time {
	for _, layout := range printDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// kpiNumberFilter matches both the padded and the unpadded form, since
// writers outside this module are not guaranteed to pad.
func kpiNumberFilter(kpiNumber string) sq.Eq {
	canonical := domain.CanonicalKpiNumber(kpiNumber)
	normalized := domain.NormalizeKpiNumber(kpiNumber)
	if canonical == normalized {
		return sq.Eq{"kpi_number": canonical}
	}
	return sq.Eq{"kpi_number": []string{canonical, normalized}}
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
